package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/alert"
	"github.com/numbergroup/autopool-notifier/pkg/config"
	"github.com/numbergroup/autopool-notifier/pkg/monitor"
	"github.com/numbergroup/autopool-notifier/pkg/monitor/health"
	"github.com/numbergroup/autopool-notifier/pkg/notify"
	"github.com/numbergroup/autopool-notifier/pkg/poller"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
	"github.com/numbergroup/autopool-notifier/pkg/status"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	confFile := flag.String("conf", "./config.yaml", "path to the configuration file")

	flag.Parse()

	conf, err := config.LoadConfig(*confFile)
	if err != nil {
		print(err.Error())
		os.Exit(1)
	}

	endpoints := conf.Chain.Endpoints()
	conf.Log.WithFields(logrus.Fields{
		"endpoints": len(endpoints),
		"contract":  conf.ContractAddress().Hex(),
		"network":   conf.Chain.NetworkName,
	}).Info("starting notifier")

	pool, err := rpcpool.New(ctx, endpoints, rpcpool.Options{
		FailureThreshold:  conf.Health.FailureThreshold,
		AttributionWindow: conf.Health.AttributionWindow,
		Log:               conf.Log,
	})
	if err != nil {
		conf.Log.WithError(err).Fatal("failed to initialize endpoint pool")
	}
	defer pool.Close()

	checkCtx := ctx
	if conf.Health.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, conf.Health.ProbeTimeout)
		defer cancel()
	}
	if err := pool.CheckConnections(checkCtx); err != nil {
		conf.Log.WithError(err).Fatal("no RPC endpoint reachable at startup")
	}

	exec := rpcpool.NewExecutor(pool, rpcpool.NewStats(), conf.Events.MaxAttempts,
		rpcpool.NewBackoff(conf.Events.Backoff, conf.Events.RetryDelay, conf.Events.MaxRetryDelay), conf.Log)

	var notifier notify.Notifier
	if conf.Notifications.Enabled {
		slackNotifier, err := notify.NewSlack(conf.Notifications.Slack, conf.Log)
		if err != nil {
			conf.Log.WithError(err).Fatal("failed to configure notifications")
		}
		notifier = slackNotifier
	}
	formatter := notify.NewFormatter(conf, notify.ExecutorStats(exec, conf.ContractAddress()))
	pipeline := notify.NewPipeline(formatter, notifier, conf.Notifications.Enabled, conf.Log)

	eventPoller := poller.New(conf, exec, pipeline)
	monitors := []monitor.Monitor{
		eventPoller,
		health.NewMonitor(conf, pool, alert.FromConfig(conf)),
		status.NewServer(conf.StatusAddr, pool, exec.Stats(), eventPoller, conf.Log),
	}

	waitGroup := &sync.WaitGroup{}
	for _, mon := range monitors {
		waitGroup.Add(1)
		go func(m monitor.Monitor) {
			conf.Log.WithField("name", m.Name()).Info("starting")

			defer waitGroup.Done()
			m.Run(ctx)
		}(mon)
	}

	waitGroup.Wait()
	conf.Log.Info("all loops stopped, exiting")
}
