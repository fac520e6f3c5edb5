// Package logging builds the process logger and carries per-request log
// fields through context.
//
// # Usage
//
//	logger, err := logging.Setup(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Redact: true,
//	})
//
//	ctx = logging.WithTenant(ctx, "tenant-42")
//	ctx = logging.WithCorrelationID(ctx, id)
//	logging.FromContext(ctx, logger).Info("governed operation completed")
//
// # Redaction
//
// With Redact set, every attribute passes through a Redactor before it is
// written. Values under keys such as token, secret or authorization are
// masked to a four-character prefix. String values are scrubbed for bearer
// tokens, API keys, email addresses and password assignments, plus any
// custom patterns from configuration.
package logging
