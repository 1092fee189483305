package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/offline-edge/offline-edge/internal/logging"
	"github.com/offline-edge/offline-edge/internal/metrics"
)

// Writer 执行 best-effort 写入：写入失败只记录日志与计数，从不返回给调用方，
// 调用方的响应路径因此不受写入结果影响。
type Writer struct {
	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewWriter 构造 best-effort 写入器；logger 为空时丢弃日志。
func NewWriter(logger *logrus.Logger, rec *metrics.Recorder) Writer {
	if logger == nil {
		logger = logging.Discard()
	}
	return Writer{logger: logger, metrics: rec}
}

// Put 写入 resp 的副本。写入脱离调用方的取消信号，请求被中止时仍会完成或静默失败。
// 返回值仅表示是否写入成功，供日志使用。
func (w Writer) Put(ctx context.Context, ns Namespace, key string, resp *Response) bool {
	if ns == nil || resp == nil {
		return false
	}
	err := ns.Put(context.WithoutCancel(ctx), key, resp.Clone())
	if err != nil {
		logger := w.logger
		if logger == nil {
			logger = logging.Discard()
		}
		fields := logging.NamespaceFields("cache_put", ns.Name())
		fields["key"] = key
		logger.WithFields(fields).WithError(err).Warn("cache_put_failed")
		w.metrics.WriteFailed(ns.Name())
		return false
	}
	return true
}
