package cmd

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/triage-agenda/internal/agenda"
	"github.com/naka-gawa/triage-agenda/internal/domain"
	"github.com/naka-gawa/triage-agenda/internal/usecase"
)

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<body>
<ul>
{{- range .}}
    <li><a href="/agenda/{{.Team}}/{{.Kind}}">{{if .Title}}{{.Title}}{{else}}{{.Team}} {{.Kind}}{{end}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

// agendaRunner runs one report; it is created per request.
type agendaRunner interface {
	Run(ctx context.Context, report *domain.Report) (string, error)
}

type agendaServer struct {
	catalog   *agenda.Catalog
	factory   agenda.QueryFactory
	newRunner func() agendaRunner
	logger    *zap.Logger
}

func (s *agendaServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /agenda/{team}/{kind}", s.handleAgenda)
	return mux
}

func (s *agendaServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.catalog.Definitions()); err != nil {
		s.logger.Error("failed to render index", zap.Error(err))
	}
}

func (s *agendaServer) handleAgenda(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Lookup(r.PathValue("team"), r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	report, err := def.Report(s.factory)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := s.newRunner().Run(r.Context(), report)
	if err != nil {
		s.logger.Error("failed to generate agenda", zap.String("report", report.Name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves agendas over HTTP",
	Long:  `Serves an index of the available reports at / and each agenda at /agenda/<team>/<kind>.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		addr := a.cfg.Serve.Addr
		if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
			addr = f.Value.String()
		}

		s := &agendaServer{
			catalog:   a.catalog,
			factory:   a.factory,
			newRunner: func() agendaRunner { return a.newAgenda(a.templates) },
			logger:    a.logger,
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		a.logger.Info("serving agendas", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Int("concurrency", usecase.DefaultConcurrency, "Maximum number of GitHub fetches in flight per agenda")
}
