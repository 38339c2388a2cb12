package handler

import (
	"context"
	"fmt"
	"io"
	"sync"

	"kewkew/internal/worker"
)

// Printer はアイテムを1行ずつ書き出すハンドラ
type Printer[T any] struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

var _ worker.Handler[string] = (*Printer[string])(nil)

// NewPrinter は w に書き出す Printer を作成する
func NewPrinter[T any](w io.Writer) *Printer[T] {
	return &Printer[T]{w: w}
}

// Process はアイテムを書き出す。書き込みエラーでも成功扱いにする
func (p *Printer[T]) Process(_ context.Context, item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, item)
	p.n++
	return true
}

// Printed は書き出した件数を返す
func (p *Printer[T]) Printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
