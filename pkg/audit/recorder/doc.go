// Package recorder writes audit records asynchronously.
//
// Record never blocks: records go into a buffered channel drained by a
// single worker goroutine. When the buffer is full the record is dropped,
// logged at warn level and reported to the Observer. Close stops intake,
// drains whatever is buffered and closes the sink.
//
//	rec := recorder.New(store, recorder.DefaultConfig(), recorder.WithObserver(metrics))
//	defer rec.Close()
package recorder
