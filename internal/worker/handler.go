package worker

import (
	"context"
	"reflect"
)

// Handler processes one item and reports whether it succeeded.
type Handler[T any] interface {
	Process(ctx context.Context, item T) bool
}

// HandlerFunc は関数を Handler として使うためのアダプタ
type HandlerFunc[T any] func(ctx context.Context, item T) bool

func (f HandlerFunc[T]) Process(ctx context.Context, item T) bool {
	return f(ctx, item)
}

type syncHandler[T any] func(item T) bool

func (f syncHandler[T]) Process(_ context.Context, item T) bool {
	return f(item)
}

// Sync はコンテキストを受け取らない同期関数を Handler に変換する
// fn が nil の場合は nil を返す（New で ErrNotImplemented になる）
func Sync[T any](fn func(item T) bool) Handler[T] {
	if fn == nil {
		return nil
	}
	return syncHandler[T](fn)
}

// missing reports whether h cannot be called: a nil interface, a nil
// HandlerFunc, or a nil pointer/func/map hiding behind the interface.
func missing[T any](h Handler[T]) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
