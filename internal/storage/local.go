package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalResolver 本地磁盘存储
type LocalResolver struct {
	basePath string
}

var _ Resolver = (*LocalResolver)(nil)

// NewLocalResolver 创建本地存储，basePath 为文件根目录
func NewLocalResolver(basePath string) (*LocalResolver, error) {
	trimmed := strings.TrimSpace(basePath)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: base path is empty", ErrInvalidPath)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve base path failed: %w", err)
	}
	return &LocalResolver{basePath: abs}, nil
}

// Open 打开文件并返回读取流与字节大小
func (r *LocalResolver) Open(_ context.Context, path string) (io.ReadCloser, int64, error) {
	full, err := r.resolve(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, ErrInvalidPath
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Exists 判断文件是否存在
func (r *LocalResolver) Exists(_ context.Context, path string) (bool, error) {
	full, err := r.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// resolve 拼接并校验路径，拒绝越出根目录的访问
func (r *LocalResolver) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimSpace(path))
	full := filepath.Join(r.basePath, cleaned)
	if full != r.basePath && !strings.HasPrefix(full, r.basePath+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}
