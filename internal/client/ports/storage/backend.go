// Package storage определяет интерфейс места хранения учетных данных.
package storage

import "context"

// Backend - одно место хранения пар ключ-значение.
// Get возвращает ok=false, если ключ отсутствует.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	Set(ctx context.Context, key string, value string) error

	Delete(ctx context.Context, keys ...string) error

	Close() error
}
