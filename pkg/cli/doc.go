/*
Package cli provides command-line helpers for the tollgate command.

Output Formatting:

Command results can be rendered as text, JSON or CSV. Values implementing
Table render as aligned columns in text mode and as rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, catalogTable); err != nil {
		return err
	}

Progress Reporting:

Long exports report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "records")
	progress.Start(total)
	progress.Update(written)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes: 2 for configuration
errors, 1 for everything else.
*/
package cli
