package app

import (
	tea "github.com/charmbracelet/bubbletea"
)

// feed передает в цикл bubbletea только последнее опубликованное значение.
// push не блокируется, поэтому его можно вызывать из подписчика,
// работающего под блокировкой каталога или плеера.
type feed[T any] struct {
	ch   chan T
	done chan struct{}
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}
}

// push заменяет непрочитанное значение новым (один производитель)
func (f *feed[T]) push(v T) {
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- v:
	default:
	}
}

// next ждет следующее значение и оборачивает его в сообщение
func (f *feed[T]) next(wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-f.ch:
			return wrap(v)
		case <-f.done:
			return nil
		}
	}
}

// stop освобождает ожидающие команды
func (f *feed[T]) stop() {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}
