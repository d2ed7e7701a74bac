package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ResumeMatch/internal/config"
	"github.com/JonMunkholm/ResumeMatch/internal/export"
	"github.com/JonMunkholm/ResumeMatch/internal/logging"
	"github.com/JonMunkholm/ResumeMatch/internal/match"
	"github.com/JonMunkholm/ResumeMatch/internal/matchclient"
)

// errReported means the failure was already printed for the user.
var errReported = errors.New("submission failed")

type submitOptions struct {
	job      string
	resumes  []string
	csvPath  string
	upstream string
}

func newSubmitCmd() *cobra.Command {
	opts := &submitOptions{}

	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit resumes and a job description, print the results",
		Example: "  " + app + " submit --job jd.pdf --resume a.pdf --resume b.docx --csv results.csv",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.job, "job", "", "job description file (required)")
	cmd.Flags().StringArrayVar(&opts.resumes, "resume", nil, "resume file, repeat for several")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "also write the results as CSV to this path")
	cmd.Flags().StringVar(&opts.upstream, "upstream", "", "matching service URL (default from UPSTREAM_URL)")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func runSubmit(cmd *cobra.Command, opts *submitOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if opts.upstream != "" {
		cfg.Upstream.URL = opts.upstream
	}

	client, err := matchclient.New(matchclient.Options{
		BaseURL:       cfg.Upstream.URL,
		UploadPath:    cfg.Upstream.UploadPath,
		DownloadPath:  cfg.Upstream.DownloadPath,
		Timeout:       cfg.Upstream.Timeout,
		MaxConcurrent: 1,
		MaxWait:       cfg.Upload.MaxWaitTime,
	})
	if err != nil {
		return err
	}

	up, closeFiles, err := openUpload(opts.job, opts.resumes)
	if err != nil {
		return err
	}
	defer closeFiles()

	results, err := client.Submit(cmd.Context(), up)
	if err != nil {
		msg := match.UserMessageFor(err)
		logging.FromContext(cmd.Context()).Debug("submission failed", "code", msg.Code, "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "Error: "+msg.Message)
		return errReported
	}

	if err := writeTable(cmd.OutOrStdout(), results); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	if opts.csvPath != "" {
		if err := os.WriteFile(opts.csvPath, export.CSV(results), 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d results to %s\n", len(results), opts.csvPath)
	}
	return nil
}

// openUpload opens every file named on the command line. The returned
// func closes them all.
func openUpload(job string, resumes []string) (matchclient.Upload, func(), error) {
	var (
		up     matchclient.Upload
		opened []io.Closer
	)
	closeAll := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	open := func(path string) (matchclient.File, error) {
		f, err := os.Open(path)
		if err != nil {
			return matchclient.File{}, fmt.Errorf("open %s: %w", path, err)
		}
		opened = append(opened, f)
		return matchclient.File{Name: filepath.Base(path), Content: f}, nil
	}

	for _, path := range resumes {
		f, err := open(path)
		if err != nil {
			closeAll()
			return up, func() {}, err
		}
		up.Resumes = append(up.Resumes, f)
	}

	jd, err := open(job)
	if err != nil {
		closeAll()
		return up, func() {}, err
	}
	up.JobDescription = jd

	return up, closeAll, nil
}
