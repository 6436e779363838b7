package inference

// Task is the pending result of one generation.
type Task struct {
	done chan struct{}
	text string
	err  error
}

// Go runs fn in its own goroutine and returns a Task that settles with its result.
func Go(fn func() (string, error)) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.text, t.err = fn()
	}()
	return t
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles and returns its result.
func (t *Task) Wait() (string, error) {
	<-t.done
	return t.text, t.err
}
