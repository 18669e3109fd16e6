// Package log provides the logging abstraction shared by mutbatch components.
//
// The batcher, the transports and the loader only depend on the Logger
// interface. A zerolog adapter is provided for real output and a no-op
// logger for tests and embedding.
//
// # Usage
//
//	logger, err := log.NewZerologAdapter(os.Stderr, "info")
//	if err != nil {
//	    return err
//	}
//	b, err := batcher.New(applier, batcher.DefaultOptions(), logger)
//
// Child loggers carry component fields:
//
//	l := logger.With(log.String("component", "loader"))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.1.0
package log
