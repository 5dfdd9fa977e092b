package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrInvalidPath 文件路径非法
	ErrInvalidPath = errors.New("storage: invalid file path")
	// ErrNotFound 文件不存在
	ErrNotFound = errors.New("storage: file not found")
)

// Resolver 设计文件存储抽象
type Resolver interface {
	// Open 打开文件并返回读取流与字节大小
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
	// Exists 判断文件是否存在
	Exists(ctx context.Context, path string) (bool, error)
}
