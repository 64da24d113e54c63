// Package main provides the command line and server entry point for the
// energy-flow optimizer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hass-energy/haeo/scenario"
	"github.com/hass-energy/haeo/server"
)

func main() {
	var (
		scenarioFile = flag.String("scenario", "", "Scenario file to optimize")
		outputFile   = flag.String("output", "", "Write results JSON to this file instead of printing a table")
		serve        = flag.Bool("serve", false, "Run the HTTP server instead of a one-shot optimization")
		port         = flag.Int("port", 8080, "HTTP server port")
		help         = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if *serve {
		runServer(*port)
		return
	}

	if *scenarioFile == "" {
		showHelp()
		os.Exit(2)
	}

	if err := runScenario(*scenarioFile, *outputFile); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runScenario(filename, outputFile string) error {
	doc, err := scenario.Load(filename)
	if err != nil {
		return err
	}

	results, err := doc.Run()
	if err != nil {
		return err
	}

	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		return results.WriteJSON(file)
	}

	printResults(results)
	return nil
}

func printResults(results *scenario.Results) {
	fmt.Println("========================================")
	fmt.Println("OPTIMIZATION RESULTS")
	fmt.Println("========================================")
	fmt.Printf("Scenario: %s\n", results.Name)
	fmt.Printf("Periods:  %d\n", len(results.Periods))
	fmt.Printf("Cost:     %.4f EUR\n\n", results.Cost)

	elements := make([]string, 0, len(results.Elements))
	for name := range results.Elements {
		elements = append(elements, name)
	}
	sort.Strings(elements)

	const rowFormat = "%-18s %-24s %-8s %s\n"
	fmt.Printf(rowFormat, "ELEMENT", "OUTPUT", "UNIT", "VALUES")
	fmt.Println(strings.Repeat("-", 78))

	for _, element := range elements {
		outputs := results.Elements[element]
		names := make([]string, 0, len(outputs))
		for name, data := range outputs {
			if data.Advanced {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			data := outputs[name]
			values := make([]string, len(data.Values))
			for i, v := range data.Values {
				values[i] = fmt.Sprintf("%8.3f", v)
			}
			fmt.Printf(rowFormat, element, name, data.Unit, strings.Join(values, " "))
		}
	}
}

func runServer(port int) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	srv := server.New(port, logger)
	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}

func showHelp() {
	fmt.Println("haeo - multi-period energy-flow optimizer")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Builds a network of sources, sinks, batteries and connections from a")
	fmt.Println("  scenario file, minimizes total cost over the horizon with a linear")
	fmt.Println("  program, and reports schedules, stored energy and shadow prices.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  haeo [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Optimize a scenario and print the schedule")
	fmt.Println("  haeo -scenario home.json")
	fmt.Println()
	fmt.Println("  # Write full results, including advanced outputs, as JSON")
	fmt.Println("  haeo -scenario home.json -output results.json")
	fmt.Println()
	fmt.Println("  # Run the HTTP server")
	fmt.Println("  haeo -serve -port 8080")
}
