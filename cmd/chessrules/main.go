package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/hailam/chessrules/internal/protocol"
	"github.com/hailam/chessrules/internal/server"
	"github.com/hailam/chessrules/internal/storage"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	httpAddr   = flag.String("http", "", "serve the HTTP API on this address instead of reading commands from stdin")
	dbDir      = flag.String("db", "", "database directory (default: db/ under $CHESSRULES_DATA_DIR or the platform data dir)")
	noDB       = flag.Bool("nodb", false, "keep games in memory only")
)

func main() {
	flag.Parse()

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	addr := *httpAddr
	if addr == "" {
		addr = os.Getenv("CHESSRULES_HTTP")
	}

	store := openStore()
	if store != nil {
		defer store.Close()
	}

	if addr == "" {
		session := protocol.New(os.Stdin, os.Stdout, store)
		if err := session.Run(); err != nil {
			log.Printf("read commands: %v", err)
		}
		return
	}

	srv := server.New(store)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Close(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.Listen(addr); err != nil {
		log.Printf("HTTP server: %v", err)
	}
}

// openStore opens the game database. A failure is logged and games are
// kept in memory instead.
func openStore() *storage.Store {
	if *noDB {
		return nil
	}
	store, err := storage.Open(*dbDir)
	if err != nil {
		log.Printf("Warning: game database not available: %v (games will not persist)", err)
		return nil
	}
	return store
}
