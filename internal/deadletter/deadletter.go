// Package deadletter records items that a handler could not process.
//
// Each failed item is appended to a plain text file as one
// "key<TAB>value" line, so the file can be replayed later with standard
// tools.
package deadletter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("dead-letter log is closed")

// Entry は1件の失敗アイテム
type Entry struct {
	Key   string
	Value string
}

// Log は追記専用の失敗ログ
type Log struct {
	mu     sync.Mutex
	path   string
	w      io.Writer
	file   *os.File
	count  int
	closed bool
}

// Open はファイルを追記モードで開く。path が空なら書き込みを捨てる
func Open(path string) (*Log, error) {
	if path == "" {
		return &Log{w: io.Discard}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter log %s: %w", path, err)
	}
	return &Log{path: path, w: f, file: f}, nil
}

// New は任意の Writer に書き込む Log を作成する
func New(w io.Writer) *Log {
	return &Log{w: w}
}

// Append は失敗アイテムを1行追記する
func (l *Log) Append(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(l.w, "%s\t%s\n", escape(key), escape(value)); err != nil {
		return fmt.Errorf("failed to append dead letter %q: %w", key, err)
	}
	l.count++
	return nil
}

// Count はこのプロセスで追記した件数を返す
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Path はファイルパスを返す（Writer 指定時は空）
func (l *Log) Path() string {
	return l.path
}

// Close はファイルを閉じる。二回目以降は何もしない
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ReadFile はログファイルの全エントリを読み込む
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, "\t")
		entries = append(entries, Entry{Key: unescape(key), Value: unescape(value)})
	}
	return entries, scanner.Err()
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }
