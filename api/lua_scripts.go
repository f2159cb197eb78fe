package api

import "github.com/redis/go-redis/v9"

// HiredNotifyScript 用於將雇用通知寫入 SSE stream
//  KEYS[1] - 得標者頻道的線上狀態 sorted set
//  KEYS[2] - SSE 的 stream
//  ARGV[1] - 目前時間 (毫秒)
//  ARGV[2] - stream 的約略長度上限
//  ARGV[3...] - 訊息欄位，field, value 交錯
//
// 返回值:
//  1 - 已寫入 stream
//  0 - 得標者目前沒有任何連線，訊息被略過
//
// 流程:
//  - 1. 移除已經過期的連線
//  - 2a. 如果沒有任何連線，返回0
//  - 2b. 如果有連線，將訊息寫入stream
//  - 3. 返回1
var HiredNotifyScript = redis.NewScript(`
-- 移除過期的連線
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])

-- 檢查得標者是否在線
if redis.call('ZCARD', KEYS[1]) == 0 then
    return 0
end

-- 寫入 stream
redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[2], '*', unpack(ARGV, 3))

return 1
`)
