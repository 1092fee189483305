package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/offline-edge/offline-edge/internal/cache"
)

const offlineBody = "Offline"

// OfflineDocument 是离线页也缺失时的最终兜底：503 + 纯文本 Offline。
func OfflineDocument() *cache.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain;charset=UTF-8")
	return &cache.Response{
		Status: http.StatusServiceUnavailable,
		Header: header,
		Body:   []byte(offlineBody),
	}
}

type offlinePayload struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// OfflineAPI 返回 {"status":"offline","data":null}，状态码 200，
// 调用方的 JSON 解析逻辑无需额外的离线分支。
func OfflineAPI() *cache.Response {
	body, _ := json.Marshal(offlinePayload{Status: "offline"})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &cache.Response{
		Status: http.StatusOK,
		Header: header,
		Body:   body,
	}
}
