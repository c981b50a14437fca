// Package observable содержит примитив публикации и подписки на снимки состояния
package observable

import "sync"

// Subject хранит последний опубликованный снимок и рассылает новые снимки подписчикам.
// Подписчики вызываются синхронно в горутине, выполнившей Publish, и не должны
// сами вызывать Publish того же Subject.
type Subject[T any] struct {
	publishMu sync.Mutex // упорядочивает публикации

	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int
}

// NewSubject создает Subject с начальным значением
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Value возвращает последний опубликованный снимок
func (s *Subject[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Publish сохраняет снимок и уведомляет всех подписчиков
func (s *Subject[T]) Publish(v T) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.value = v
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe регистрирует подписчика и сразу передает ему текущий снимок.
// Возвращает функцию отписки.
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Len возвращает количество активных подписчиков
func (s *Subject[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
