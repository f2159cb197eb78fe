package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// 所有 stream 訊息的內容都放在這個欄位
const MessageDataField = "data"

var (
	ErrPointerType  = errors.New("pointer type is not allowed")
	ErrMissingField = errors.New("data field not found or invalid type")
)

// DefaultParseToMessage 以 msgpack 序列化後再做 base64 編碼，放進 data 欄位
func DefaultParseToMessage[T any](data T) (map[string]any, error) {
	if t := reflect.TypeOf(data); t != nil && t.Kind() == reflect.Ptr {
		return nil, ErrPointerType
	}

	raw, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}
	return map[string]any{
		MessageDataField: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// DefaultParseFromMessage 是 DefaultParseToMessage 的反向操作
// 空訊息會回傳零值
func DefaultParseFromMessage[T any](message map[string]any) (T, error) {
	var result T
	if t := reflect.TypeOf(result); t != nil && t.Kind() == reflect.Ptr {
		return result, ErrPointerType
	}
	if len(message) == 0 {
		return result, nil
	}

	encoded, ok := message[MessageDataField].(string)
	if !ok {
		return result, ErrMissingField
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return result, fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return result, nil
}

// flattenValues 將訊息欄位展開成 field, value 交錯的參數，順序固定以便測試
func flattenValues(values map[string]any) []any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(values)*2)
	for _, k := range keys {
		args = append(args, k, values[k])
	}
	return args
}
