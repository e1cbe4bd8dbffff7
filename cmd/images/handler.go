package images

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/projecteru2/pullwatch/catalog"
	cmdcore "github.com/projecteru2/pullwatch/cmd/core"
	imagebackend "github.com/projecteru2/pullwatch/images"
	"github.com/projecteru2/pullwatch/job"
	"github.com/projecteru2/pullwatch/pool"
	"github.com/projecteru2/pullwatch/pull"
	"github.com/projecteru2/pullwatch/sink"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Pull(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	backends, reg, err := cmdcore.InitBackends(ctx, conf)
	if err != nil {
		return err
	}

	tasks, err := pool.New(ctx, conf.MaxTasks)
	if err != nil {
		return err
	}
	defer tasks.Release(cmdcore.ReleaseTimeout) //nolint:errcheck

	display := sink.ResolveDisplay(sink.Display(conf.Display), int(os.Stderr.Fd())) //nolint:gosec // fd fits in int
	sinks := sink.NewFactory(ctx, tasks, display, os.Stderr)
	cat := cmdcore.NewCatalog(ctx, backends)
	defer cat.Wait()

	for _, image := range args {
		if err := pullOne(ctx, reg, sinks, cat, image); err != nil {
			return err
		}
	}
	return nil
}

// pullOne runs one pull through its own Processor, so a failure in one
// image never cancels the jobs of another.
func pullOne(ctx context.Context, store imagebackend.Images, sinks job.SinkFactory, cat *catalog.Catalog, image string) error {
	logger := log.WithFunc("cmd.pull")
	op := uuid.NewString()
	logger.Infof(ctx, "[%s] pulling %s", op, image)

	p := pull.NewProcessor(image, sinks, pull.ContextSignal(ctx), cat)
	start := time.Now()
	if err := store.Pull(ctx, image, p); err != nil {
		logger.Warnf(ctx, "[%s] pull %s stopped with %d job(s) outstanding", op, image, p.Active())
		return fmt.Errorf("pull %s: %w", image, err)
	}
	logger.Infof(ctx, "[%s] done: %s (%s)", op, image, time.Since(start).Round(time.Millisecond))
	return nil
}

func (h Handler) List(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	backends, _, err := cmdcore.InitBackends(ctx, conf)
	if err != nil {
		return err
	}

	all, err := cmdcore.NewCatalog(ctx, backends).Images(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No images found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tNAME\tDIGEST\tLAYERS\tSIZE\tCREATED")
	for _, img := range all {
		digest := img.ID
		if len(digest) > 19 {
			digest = digest[:19]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			img.Type,
			img.Name,
			digest,
			img.Layers,
			cmdcore.FormatSize(img.Size),
			img.CreatedAt.Local().Format(time.DateTime),
		)
	}
	w.Flush() //nolint:errcheck,gosec
	return nil
}

func (h Handler) Delete(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	logger := log.WithFunc("cmd.delete")
	backends, _, err := cmdcore.InitBackends(ctx, conf)
	if err != nil {
		return err
	}

	var allDeleted []string
	for _, b := range backends {
		deleted, err := b.Delete(ctx, args)
		if err != nil {
			return fmt.Errorf("delete %s: %w", b.Type(), err)
		}
		allDeleted = append(allDeleted, deleted...)
	}
	for _, ref := range allDeleted {
		logger.Infof(ctx, "deleted: %s", ref)
	}
	if len(allDeleted) == 0 {
		logger.Infof(ctx, "no matching images found")
	}
	return nil
}
