package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/alinrajpoot/max30102-simulator/max30102/model"
	"github.com/alinrajpoot/max30102-simulator/max30102/monitor"
	"github.com/alinrajpoot/max30102-simulator/max30102/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "max30102-sim"
	app.Description = "A MAX30102 pulse oximeter simulator with a TCP streaming interface"
	app.Usage = "max30102-sim [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "host",
			Usage: "Address to listen on",
			Value: "localhost",
		},
		cli.IntFlag{
			Name:  "port",
			Usage: "Port to listen on",
			Value: 8888,
		},
		cli.DurationFlag{
			Name:  "interval",
			Usage: "Sample broadcast interval",
			Value: server.DefaultBroadcastInterval,
		},
		cli.StringFlag{
			Name:  "scenario",
			Usage: "Initial physiological scenario",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "monitor",
			Usage: "Connect to a running simulator and render the live waveform",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "addr",
					Usage: "Simulator address to connect to",
					Value: "localhost:8888",
				},
			},
			Action: runMonitor,
		},
		{
			Name:   "scenarios",
			Usage:  "List the available physiological scenarios",
			Action: listScenarios,
		},
	}
	app.Action = runServer

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running simulator", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func runServer(c *cli.Context) error {
	setupLogging(c.Bool("debug"))

	srv := server.New(
		c.String("host"),
		c.Int("port"),
		server.WithBroadcastInterval(c.Duration("interval")),
	)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	if name := c.String("scenario"); name != "" {
		if err := srv.ApplyScenario(name); err != nil {
			return err
		}
	}

	slog.Info("Server is running, press Ctrl+C to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("Shutting down")
	return nil
}

func runMonitor(c *cli.Context) error {
	// Logs would corrupt the terminal UI, keep them out of the way.
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	slog.SetDefault(slog.New(handler))

	return monitor.New(c.String("addr"), slog.Default()).Run()
}

func listScenarios(c *cli.Context) error {
	for _, name := range model.ScenarioNames() {
		fmt.Printf("%-18s %s\n", name, model.Scenarios[name].Description)
	}
	return nil
}
