package routecheck

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/logger"
)

// maxParallelLoads bounds concurrent endpoint file reads.
const maxParallelLoads = 4

// Job is one endpoint collection to check.
type Job struct {
	// EndpointsFile is the engine output to load.
	EndpointsFile string `json:"endpoints_file" yaml:"endpoints_file"`
	// SourceRoot is the project the endpoints were generated from. Defaults
	// to the directory holding EndpointsFile.
	SourceRoot string `json:"source_root" yaml:"source_root"`
}

// Name identifies the job in reports.
func (j Job) Name() string {
	if j.SourceRoot != "" {
		return j.SourceRoot
	}
	return j.EndpointsFile
}

// Root returns the source root used for validation.
func (j Job) Root() string {
	if j.SourceRoot != "" {
		return j.SourceRoot
	}
	return filepath.Dir(j.EndpointsFile)
}

// ReadPathList reads a path-list file. See ParsePathList.
func ReadPathList(path string, log *logger.Logger) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path list: %w", err)
	}
	defer f.Close()
	return ParsePathList(f, path, log)
}

// ParsePathList parses one job per line as "<endpoints-file> [source-root]".
// Empty lines and lines starting with "#" are skipped. A line starting with
// "#!" opens a block comment and one starting with "!#" closes it. Entries
// whose endpoints file does not exist are logged and skipped; name is the
// list's file name used in those warnings.
func ParsePathList(r io.Reader, name string, log *logger.Logger) ([]Job, error) {
	if log == nil {
		log = logger.Nop()
	}

	var jobs []Job
	inBlock := false
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "#!"):
			inBlock = true
			continue
		case strings.HasPrefix(line, "!#"):
			inBlock = false
			continue
		case inBlock, line == "", strings.HasPrefix(line, "#"):
			continue
		}

		fields := strings.Fields(line)
		job := Job{EndpointsFile: fields[0]}
		if len(fields) > 1 {
			job.SourceRoot = fields[1]
		}

		if _, err := os.Stat(job.EndpointsFile); err != nil {
			log.Warnf("Unable to find input path '%s' at line %d of %s", job.EndpointsFile, lineNo, name)
			continue
		}
		jobs = append(jobs, job)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read path list: %w", err)
	}
	return jobs, nil
}

// Loaded is a job with its decoded endpoints.
type Loaded struct {
	Job       Job
	Endpoints []*endpoint.Endpoint
	// Err is set when the endpoints file could not be decoded.
	Err error
}

// LoadJobs reads every job's endpoints file in parallel. Results keep job
// order. A file that fails to decode is reported in its Loaded.Err and does
// not stop the others; only cancellation aborts the load.
func LoadJobs(ctx context.Context, jobs []Job) ([]Loaded, error) {
	loaded := make([]Loaded, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			endpoints, err := codec.ReadFile(job.EndpointsFile)
			loaded[i] = Loaded{Job: job, Endpoints: endpoints, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}
