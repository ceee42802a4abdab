package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Ошибки выполнения задач.
var (
	// ErrMissingArgument — в kwargs нет обязательного аргумента.
	ErrMissingArgument = errors.New("missing task argument")

	// ErrEncoderRequest — encoder-сервис вернул ошибку или недоступен.
	ErrEncoderRequest = errors.New("encoder request failed")
)

// Handler — контракт бизнес-задачи, потребляемый движком.
//
// Execute выполняет задачу и возвращает человекочитаемое сообщение
// о результате. Clean убирает всё, что задача произвела; обязан быть
// идемпотентным и no-op, когда убирать нечего.
type Handler interface {
	// Name возвращает стабильное квалифицированное имя типа задачи.
	// По нему реализация разрешается при перезапуске.
	Name() string

	Execute(ctx context.Context, kwargs map[string]any) (string, error)
	Clean(ctx context.Context, kwargs map[string]any) error
}

// ObjectStore — контракт объектного хранилища, нужный задачам.
// Реализуется internal/storage поверх MinIO.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
	RemoveByPrefix(ctx context.Context, bucket, prefix string) error
}

// ObjectInfo — метаданные объекта в хранилище.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// stringArg извлекает обязательный строковый аргумент из kwargs.
func stringArg(kwargs map[string]any, name string) (string, error) {
	v, ok := kwargs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return s, nil
}

// intArg извлекает целочисленный аргумент с значением по умолчанию.
// JSON-десериализация даёт float64, поэтому принимаются оба типа.
func intArg(kwargs map[string]any, name string, fallback int) int {
	switch v := kwargs[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
