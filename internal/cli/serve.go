package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medtrust/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the pipeline over HTTP:

  POST /api/query             question -> trust report
  POST /api/documents/ingest  populate the corpus from PubMed
  GET  /api/documents/stats   corpus counts
  GET  /api/documents/:pmid   single document
  GET  /api/health            liveness and database check

Example:
  medtrust serve
  medtrust serve --port 9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().BoolVar(&queryDebate, "debate", false, "use multi-agent debate generation")
	serveCmd.Flags().IntVar(&queryAdvocates, "advocates", 2, "number of debate advocates")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if queryDebate {
		cfg.Debate.Enabled = true
		cfg.Debate.NumAdvocates = queryAdvocates
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.pipeline, a.store, a.fetcher, a.embedder, cfg.Concurrency.EmbedWorkers)
	if err := srv.Run(cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
