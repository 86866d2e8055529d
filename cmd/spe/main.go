package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/app"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	portal := flag.String("portal", envOr("SPE_PORTAL_URL", ""), "URL du portail (ex: http://portal.example.com:8080)")
	mac := flag.String("mac", envOr("SPE_MAC", ""), "Adresse MAC du boîtier (ex: 00:1A:79:12:34:56)")
	kindFlag := flag.String("kind", "", "Type de contenu: channels, movies ou series")
	out := flag.String("out", "playlists", "Répertoire de sortie")
	workers := flag.Int("workers", 10, "Requêtes de résolution simultanées")
	timeout := flag.Duration("timeout", 10*time.Second, "Timeout HTTP par requête")
	proxyMarker := flag.String("proxy-marker", app.DefaultProxyHostMarker, "Marqueur d'URL de proxy local à réécrire")
	proxyPattern := flag.String("proxy-pattern", app.DefaultProxyPathPattern, "Pattern (regex) extrayant l'id de flux")
	flag.Parse()

	stdin := bufio.NewReader(os.Stdin)
	if *portal == "" {
		*portal = prompt(stdin, "Portal URL (e.g. http://portal.example.com:8080): ")
	}
	if *mac == "" {
		*mac = prompt(stdin, "MAC address (e.g. 00:1A:79:12:34:56): ")
	}
	if *kindFlag == "" {
		*kindFlag = prompt(stdin, "Content type [channels/movies/series]: ")
	}

	kind, err := domain.ParseContentKind(*kindFlag)
	if err != nil {
		fail("%v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := app.NewPortalClient(*portal, *mac, app.PortalOptions{
		Timeout: *timeout,
		Logger:  logger,
	})
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("%sConnecting to %s...%s\n", colorCyan, client.BaseURL(), colorReset)
	account, err := client.Authenticate(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			exitGracefully()
		}
		fail("authentication failed: %v", err)
	}
	fmt.Printf("%sAuthenticated as %s (expires: %s)%s\n", colorGreen, account.MAC, account.Expiry, colorReset)

	writer, err := app.NewPlaylistWriter(*out, client.BaseURL(), time.Now())
	if err != nil {
		fail("cannot create playlist: %v", err)
	}

	exporter, err := app.NewExporter(client, logger, app.ExporterOptions{
		Workers:          *workers,
		Reporter:         consoleReporter{},
		ProxyHostMarker:  *proxyMarker,
		ProxyPathPattern: *proxyPattern,
	})
	if err != nil {
		_ = writer.Close()
		fail("%v", err)
	}

	report, expErr := exporter.Export(ctx, kind, writer)
	if err := writer.Close(); err != nil {
		fail("cannot finalize playlist: %v", err)
	}

	fmt.Printf("%sWrote %d entries (%d unresolved) to %s%s\n",
		colorBlue, report.Entries, report.Unresolved, writer.Path(), colorReset)

	if expErr != nil {
		if errors.Is(expErr, context.Canceled) {
			exitGracefully()
		}
		fail("%v", expErr)
	}
}

type consoleReporter struct{}

func (consoleReporter) Infof(format string, args ...any) {
	fmt.Printf(colorCyan+format+colorReset+"\n", args...)
}

func (consoleReporter) Warnf(format string, args ...any) {
	fmt.Printf(colorYellow+format+colorReset+"\n", args...)
}

func (consoleReporter) Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+format+colorReset+"\n", args...)
}

func (consoleReporter) CategoryDone(title string, entries, unresolved int) {
	fmt.Printf("Fetched %s%d%s entries for category: %s\n", colorGreen, entries, colorReset, title)
	if unresolved > 0 {
		fmt.Printf("%s  %d items could not be resolved%s\n", colorYellow, unresolved, colorReset)
	}
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Printf("%s%s%s", colorCyan, label, colorReset)
	line, err := r.ReadString('\n')
	if err != nil {
		exitGracefully()
	}
	return strings.TrimSpace(line)
}

func exitGracefully() {
	fmt.Printf("\n%sExiting gracefully...%s\n", colorYellow, colorReset)
	os.Exit(0)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+format+colorReset+"\n", args...)
	os.Exit(1)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
