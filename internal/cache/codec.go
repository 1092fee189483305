package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// record 是持久化后端（fs/sqlite/redis）共享的序列化格式。
type record struct {
	Key    string      `json:"key"`
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

func encodeRecord(key string, resp *Response) ([]byte, error) {
	return json.Marshal(record{
		Key:    key,
		Status: resp.Status,
		Header: resp.Header,
		Body:   resp.Body,
	})
}

func decodeRecord(data []byte) (string, *Response, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", nil, fmt.Errorf("decode cache record: %w", err)
	}
	if rec.Header == nil {
		rec.Header = http.Header{}
	}
	return rec.Key, &Response{Status: rec.Status, Header: rec.Header, Body: rec.Body}, nil
}
