package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/qnetsim/datarecording"
	"github.com/sarchlab/qnetsim/monitoring"
	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/timing"
	"github.com/sarchlab/qnetsim/topology"
	"github.com/sarchlab/qnetsim/tracing"
)

type runOptions struct {
	configPath  string
	seed        int64
	seedSet     bool
	stopTime    int64
	stopTimeSet bool
	logLevel    string
	logModules  []string
	recordPath  string
	record      bool
	monitor     bool
	monitorPort int
	openBrowser bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation that a topology file describes",
	Run: func(cmd *cobra.Command, _ []string) {
		opts := runOpts
		opts.configPath = configPath(opts.configPath)
		opts.seedSet = cmd.Flags().Changed("seed")
		opts.stopTimeSet = cmd.Flags().Changed("stop-time")
		opts.record = cmd.Flags().Changed("record")

		if !cmd.Flags().Changed("log-level") {
			if level := os.Getenv(EnvLogLevel); level != "" {
				opts.logLevel = level
			}
		}

		if err := run(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "",
		"Topology file, YAML or JSON (default $"+EnvConfig+")")
	f.Int64Var(&runOpts.seed, "seed", 0, "Seed that overrides the topology seed")
	f.Int64Var(&runOpts.stopTime, "stop-time", 0,
		"Simulated time in picoseconds to stop at, overriding the topology")
	f.StringVar(&runOpts.logLevel, "log-level", "warn",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
	f.StringSliceVar(&runOpts.logModules, "log-modules", nil,
		"Modules to log, such as optical or node (default all)")
	f.StringVar(&runOpts.recordPath, "record", "",
		"Record channel and stack events into this SQLite file, given "+
			"without the .sqlite3 suffix; an empty path generates a name")
	f.BoolVar(&runOpts.monitor, "monitor", false, "Serve the monitoring API")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring API (default random)")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"Open the monitoring API in a browser")

	rootCmd.AddCommand(runCmd)
}

func newSink(opts runOptions, errOut io.Writer) (*logging.Sink, error) {
	sink := logging.New(errOut)
	if err := sink.SetLevel(opts.logLevel); err != nil {
		return nil, err
	}

	if len(opts.logModules) == 0 {
		sink.TrackAll()
	}

	for _, m := range opts.logModules {
		sink.TrackModule(m)
	}

	return sink, nil
}

func run(opts runOptions, out, errOut io.Writer) error {
	if opts.configPath == "" {
		return fmt.Errorf("no topology file given")
	}

	cfg, err := topology.Load(opts.configPath)
	if err != nil {
		return err
	}

	sink, err := newSink(opts, errOut)
	if err != nil {
		return err
	}

	buildOpts := []topology.BuildOption{topology.WithLogger(sink)}
	if opts.seedSet {
		buildOpts = append(buildOpts, topology.WithSeed(opts.seed))
	}

	if opts.stopTimeSet {
		buildOpts = append(buildOpts,
			topology.WithStopTime(timing.VTimeInPS(opts.stopTime)))
	}

	net, err := topology.Build(cfg, buildOpts...)
	if err != nil {
		return err
	}
	defer net.Sim.Close()

	counter := tracing.NewCounter()
	for _, d := range tracedDomains(net) {
		tracing.CollectTrace(d, counter)
	}

	var runRecorder *datarecording.RunRecorder
	var recorder datarecording.DataRecorder

	if opts.record {
		recorder, runRecorder = startRecording(opts, net)
		defer recorder.Close()
	}

	if opts.monitor {
		stop, err := startMonitor(opts, net, sink, counter, stopTime(opts, cfg))
		if err != nil {
			return err
		}
		defer stop()
	}

	runErr := net.Run()

	if runRecorder != nil {
		runRecorder.Set("Simulated Time", strconv.FormatInt(int64(net.Sim.Now()), 10))
		runRecorder.End()
	}

	if runErr != nil {
		return runErr
	}

	enc := yaml.NewEncoder(out)
	defer enc.Close()

	return enc.Encode(net.Report())
}

func tracedDomains(net *topology.Network) []hooking.NamedHookable {
	var domains []hooking.NamedHookable

	for _, qc := range net.QuantumChannels {
		domains = append(domains, qc)
	}

	for _, cc := range net.ClassicalChannels {
		domains = append(domains, cc)
	}

	return domains
}

func startRecording(
	opts runOptions,
	net *topology.Network,
) (datarecording.DataRecorder, *datarecording.RunRecorder) {
	recorder := datarecording.New(opts.recordPath)

	channels := tracing.NewChannelRecorder(recorder, net.Sim)
	for _, d := range tracedDomains(net) {
		tracing.CollectTrace(d, channels)
	}

	stack := tracing.NewStackRecorder(recorder, net.Sim)
	for _, r := range net.Routing {
		tracing.CollectTrace(r, stack)
	}

	runRecorder := datarecording.NewRunRecorder(recorder)
	runRecorder.Start()
	runRecorder.Set("Config", opts.configPath)
	runRecorder.Set("Seed", strconv.FormatInt(net.Sim.Seed(), 10))

	return recorder, runRecorder
}

func stopTime(opts runOptions, cfg *topology.Config) timing.VTimeInPS {
	if opts.stopTimeSet {
		return timing.VTimeInPS(opts.stopTime)
	}

	return cfg.StopTime
}

func startMonitor(
	opts runOptions,
	net *topology.Network,
	sink *logging.Sink,
	counter *tracing.Counter,
	stop timing.VTimeInPS,
) (func(), error) {
	m := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithLogger(sink)
	m.RegisterEngine(net.Sim.Engine())
	m.RegisterEntities(net.Sim)
	m.RegisterTrafficCounter(counter)

	if stop > 0 {
		bar := m.CreateProgressBar("simulated time", uint64(stop))
		net.Sim.Engine().AcceptHook(&monitoring.TimeProgressHook{Bar: bar})
	}

	url, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.openBrowser {
		if err := browser.OpenURL(url + "/api/entities"); err != nil {
			sink.For("monitor").Warnf("cannot open browser: %v", err)
		}
	}

	return func() {
		if err := m.StopServer(); err != nil {
			sink.For("monitor").Warnf("cannot stop monitor: %v", err)
		}
	}, nil
}
