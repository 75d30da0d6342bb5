package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dictation/internal/bootstrap"
	"dictation/internal/domain"
	"dictation/internal/transcript"
	"dictation/internal/usecase"
)

type options struct {
	configPath string
	file       string
	timeout    time.Duration
	quiet      bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var opt options
	flag.StringVar(&opt.configPath, "config", "", "Path to a YAML config file (also reads DICTATION_CONFIG)")
	flag.StringVar(&opt.file, "file", "", "Recognize a recorded audio file instead of the default input device")
	flag.DurationVar(&opt.timeout, "timeout", 0, "Stop after this long (default: run until interrupted)")
	flag.BoolVar(&opt.quiet, "quiet", false, "Do not print hypotheses while recognizing")
	flag.Parse()

	services, err := bootstrap.Build(opt.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictate: %v\n", err)
		return 2
	}
	log := services.Logger

	if listen := services.Config.Metrics.Listen; listen != "" {
		server := serveMetrics(listen, log)
		defer server.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.timeout)
		defer cancel()
	}

	text, err := dictate(ctx, services, opt)
	if err != nil {
		log.WithError(err).Error("dictation failed")
		if errors.Is(err, domain.ErrEngineUnavailable) || errors.Is(err, domain.ErrSourceNotFound) {
			return 2
		}
		return 1
	}

	fmt.Println(text)
	return 0
}

type subscription struct {
	subscribe func(usecase.Handler) (*usecase.Subscription, error)
	handler   usecase.Handler
}

func dictate(ctx context.Context, services bootstrap.Services, opt options) (string, error) {
	session, err := services.NewSession()
	if err != nil {
		return "", err
	}
	log := services.Logger.WithField("session", session.ID())
	defer func() {
		if err := session.Dispose(); err != nil {
			log.WithError(err).Warn("session teardown reported failures")
		}
	}()

	ctx, finish := context.WithCancel(ctx)
	defer finish()

	aggregator := transcript.NewAggregator()
	handlers := []subscription{
		{session.OnRecognized, aggregator},
		{session.OnHypothesis, aggregator},
		{session.OnRecognized, usecase.HandlerFunc(func(result domain.Result) {
			fmt.Fprintf(os.Stderr, "\r\033[K%s\n", result.Text)
		})},
		// A recorded file ends the run on its own.
		{session.OnCompleted, usecase.HandlerFunc(func(domain.Result) { finish() })},
	}
	if !opt.quiet {
		handlers = append(handlers, subscription{session.OnHypothesis, usecase.HandlerFunc(func(result domain.Result) {
			fmt.Fprintf(os.Stderr, "\r\033[K%s", result.Text)
		})})
	}
	for _, h := range handlers {
		sub, err := h.subscribe(h.handler)
		if err != nil {
			return "", err
		}
		log.WithField("subscription", sub.ID()).Debug("handler subscribed")
	}

	if opt.file != "" {
		err = session.StartFile(opt.file)
	} else {
		err = session.Start()
	}
	if err != nil {
		return "", err
	}

	<-ctx.Done()

	if session.State() == domain.SessionStateRecognizing {
		if err := session.Stop(); err != nil {
			log.WithError(err).Warn("stop reported failures")
		}
		// Stop returns before the engine drains; give trailing finals a moment.
		time.Sleep(services.Config.Session.StreamingGrace)
	}

	log.WithField("utterances", len(aggregator.Finals())).Info("dictation finished")
	return aggregator.Text(), nil
}

func serveMetrics(listen string, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics listener stopped")
		}
	}()
	log.WithField("listen", listen).Info("serving metrics")
	return server
}
