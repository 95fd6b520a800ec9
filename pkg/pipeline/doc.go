// Package pipeline drives a complete fetch run.
//
// A Coordinator splits the identifier list into fixed-size batches and,
// one batch at a time, fetches it through a BatchRunner, writes the
// successful records, and saves the checkpoint. Only identifiers whose
// records reached disk are added to the checkpoint. Failures are collected
// across the run and written once at the end.
//
// Pipeline builds the whole component graph from a config.Config and adds
// the resume, force-restart and reconcile handling used by the CLI:
//
//	p, err := pipeline.New(cfg, pipeline.WithObserver(obs))
//	if err != nil {
//		return err
//	}
//	summary, err := p.Run(ctx, ids, pipeline.RunOptions{Resume: true})
//
// Events are reported through Observer. LoggingObserver writes them to a
// logger.Logger and MultiObserver fans them out to several observers.
package pipeline
