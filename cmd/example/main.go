package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pagecms "github.com/goliatone/go-pagecms"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/commands"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// headerAuth grants editor rights to requests carrying X-Editor. It stands in
// for a real identity provider.
type headerAuth struct{}

func (headerAuth) CurrentUserID(ctx context.Context) (string, error) {
	if user, ok := ctx.Value(editorKey{}).(string); ok {
		return user, nil
	}
	return "", errors.New("anonymous")
}

func (headerAuth) HasPermission(ctx context.Context, _ string) (bool, error) {
	_, ok := ctx.Value(editorKey{}).(string)
	return ok, nil
}

type editorKey struct{}

func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get("X-Editor"); user != "" {
			r = r.WithContext(context.WithValue(r.Context(), editorKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	configPath := flag.String("config", os.Getenv("PAGECMS_CONFIG"), "path to a pagecms yaml file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := pagecms.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Routes = map[string]string{"hello": "/hello"}

	module, err := pagecms.New(cfg, pagecms.WithAuth(headerAuth{}))
	if err != nil {
		log.Fatalf("init pagecms: %v", err)
	}
	defer module.Close()

	ctx := context.Background()
	if err := module.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := seed(ctx, module); err != nil {
		log.Fatalf("seed: %v", err)
	}

	router := module.Handler()
	router.With(module.Decorate("hello")).Get("/hello", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<p>Hello from an application route.</p>"))
	})

	module.Start()
	server := &http.Server{Addr: *addr, Handler: identify(router), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("pagecms example listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdown); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func seed(ctx context.Context, module *pagecms.Module) error {
	existing, err := module.Sites().List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	site, err := module.Sites().Create(ctx, &sites.Site{
		ID: uuid.New(), Name: "Example", Host: sites.WildcardHost, Enabled: true, IsDefault: true, Locale: "en",
	})
	if err != nil {
		return err
	}
	home, err := module.Pages().Create(ctx, pages.CreatePageInput{SiteID: site.ID, Name: "Home", Title: "Welcome"})
	if err != nil {
		return err
	}
	content, err := module.Blocks().CreateContainer(ctx, blocks.CreateContainerInput{PageID: home.ID, Name: "content"})
	if err != nil {
		return err
	}
	if _, err := module.Blocks().Create(ctx, blocks.CreateBlockInput{
		PageID: &home.ID, ParentID: &content.ID, Kind: blocks.KindContent, Type: "text",
		Settings: map[string]any{"format": "markdown", "content": "# Welcome\n\nThis page was published from the editor tree."},
	}); err != nil {
		return err
	}

	cmds := module.Commands()
	if err := cmds.SyncRoutes.Execute(ctx, commands.SyncRoutesCommand{
		SiteID: site.ID,
		Routes: []commands.RouteDefinition{{Name: "hello", Path: "/hello", Methods: []string{"GET"}}},
	}); err != nil {
		return err
	}
	return cmds.CreateSnapshots.Execute(ctx, commands.CreateSnapshotsCommand{SiteID: site.ID})
}
