package svc

import "errors"

// ErrNoBaskets 错误：没有可跟踪的篮子
var ErrNoBaskets = errors.New("no baskets configured or stored")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
