package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供策略分类、响应来源与请求标识字段，供代理请求日志复用。
func RequestFields(class, source, method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"class":  class,
		"source": source,
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// NamespaceFields 描述一次命名空间操作（预缓存、写入、删除）。
func NamespaceFields(action, namespace string) logrus.Fields {
	return logrus.Fields{
		"action":    action,
		"namespace": namespace,
	}
}
