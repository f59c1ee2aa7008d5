package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/baiqidi/overlay-sched/sched"
	"github.com/baiqidi/overlay-sched/sched/corpus"
)

var (
	// CLI flags shared by subcommands
	manifestPath     string // Path to the corpus manifest (JSON)
	logLevel         string // Log verbosity level
	policyConfigPath string // Path to YAML policy bundle

	// run flags
	windowCapacity   int    // Lookahead window capacity
	picks            int    // Number of scheduling iterations to drive
	refuzz           bool   // Invalidate features of every picked entry, as a mutating fuzzer would
	metricsEnabled   bool   // Collect and print Prometheus metrics
	metricsNamespace string // Prometheus namespace
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "overlay-sched",
	Short: "Novelty-driven seed scheduler for stateful protocol fuzzing",
}

// runCmd drives the window scheduler over a corpus the way the fuzz loop does
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay scheduling decisions over a corpus",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if policyConfigPath != "" {
			applyPolicyBundle(cmd)
		}
		if windowCapacity < 1 || windowCapacity > sched.WindowCapacity {
			logrus.Fatalf("--window must be in [1, %d], got %d", sched.WindowCapacity, windowCapacity)
		}
		if picks < 0 {
			logrus.Fatalf("--picks must be >= 0, got %d", picks)
		}

		queue := loadQueue()

		var registry *prometheus.Registry
		var metrics *sched.Metrics
		if metricsEnabled {
			registry = prometheus.NewRegistry()
			m, err := sched.NewMetrics(metricsNamespace, registry)
			if err != nil {
				logrus.Fatalf("Failed to register metrics: %v", err)
			}
			metrics = m
		}

		logrus.Infof("Scheduling %d picks over %d entries (window=%d, refuzz=%v)",
			picks, queue.Len(), windowCapacity, refuzz)

		s := sched.NewScheduler(sched.NewConfig(windowCapacity, sched.FileReader{}, metrics))
		counts := make(map[int]int, queue.Len())
		var order []int
		head := queue.Head
		cycles := 0
		for i := 0; i < picks && head != nil; i++ {
			tc := s.PickFromWindow(head)
			counts[tc.ID]++
			order = append(order, tc.ID)
			if refuzz {
				s.PrepareEntry(tc)
			}

			head = s.Current()
			if head == nil {
				// Queue cycle finished: the host restarts from the head.
				cycles++
				s.Reset()
				head = queue.Head
				logrus.Debugf("queue cycle %d complete after %d picks", cycles, i+1)
			}
		}

		printPicks(queue, counts, order)
		printNovelty(queue)
		if registry != nil {
			printMetrics(registry)
		}
		logrus.Info("Scheduling complete.")
	},
}

// scoreCmd prints signatures, clusters and pairwise similarity for a corpus
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print signatures, clusters and pairwise similarity of a corpus",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		queue := loadQueue()
		s := sched.NewScheduler(sched.DefaultConfig())

		feats := make([]*sched.Features, queue.Len())
		for i, tc := range queue.Entries {
			feats[i] = s.GetOrBuildFeatures(tc)
		}

		fmt.Printf("=== Signatures (%s) ===\n", queue.Dir)
		for i, tc := range queue.Entries {
			fmt.Printf("%4d  %-40s msgs=%-3d trace=%-3d sig=%08x set-sig=%08x\n",
				tc.ID, queue.RelPath(tc), feats[i].MessageCount, len(feats[i].StateTrace),
				feats[i].Signature, sched.StateSetSignature(feats[i].StateTrace))
		}

		idx := sched.NewClusterIndex(sched.NewFeatureBuilder(sched.FileReader{}, nil), queue.Entries)
		sched.ScoreNovelty(idx, queue.Entries)
		fmt.Printf("\n=== Clusters ===\n")
		for c, cl := range idx.Clusters {
			ids := make([]string, 0, cl.Size())
			for _, k := range cl.Order {
				tc := queue.Entries[cl.Members[k]]
				ids = append(ids, fmt.Sprintf("%d(%.3f)", tc.ID, cl.Scores[k]))
			}
			fmt.Printf("%3d  sig=%08x  %s\n", c, cl.Signature, strings.Join(ids, " "))
		}

		fmt.Printf("\n=== Sequence Similarity (matched/positional) ===\n")
		for i := range feats {
			row := make([]string, len(feats))
			for j := range feats {
				row[j] = fmt.Sprintf("%.3f/%.3f", s.SequenceSimilarity(feats[i], feats[j]),
					sched.PositionalSimilarity(feats[i], feats[j]))
			}
			fmt.Printf("%4d  %s\n", queue.Entries[i].ID, strings.Join(row, " "))
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func loadQueue() *corpus.Queue {
	if manifestPath == "" {
		logrus.Fatalf("--manifest is required")
	}
	queue, err := corpus.LoadManifest(manifestPath)
	if err != nil {
		logrus.Fatalf("Failed to load corpus: %v", err)
	}
	if queue.Len() == 0 {
		logrus.Warnf("Corpus %s is empty", manifestPath)
	}
	return queue
}

// applyPolicyBundle uses bundle values as defaults; CLI flags override via Changed().
func applyPolicyBundle(cmd *cobra.Command) {
	bundle, err := sched.LoadPolicyBundle(policyConfigPath)
	if err != nil {
		logrus.Fatalf("Failed to load policy config: %v", err)
	}
	if err := bundle.Validate(); err != nil {
		logrus.Fatalf("Invalid policy config: %v", err)
	}
	if bundle.Window.Capacity != nil && !cmd.Flags().Changed("window") {
		windowCapacity = *bundle.Window.Capacity
	}
	if bundle.Run.Picks != nil && !cmd.Flags().Changed("picks") {
		picks = *bundle.Run.Picks
	}
	if bundle.Run.Refuzz != nil && !cmd.Flags().Changed("refuzz") {
		refuzz = *bundle.Run.Refuzz
	}
	if bundle.Metrics.Enabled != nil && !cmd.Flags().Changed("metrics") {
		metricsEnabled = *bundle.Metrics.Enabled
	}
	if bundle.Metrics.Namespace != "" && !cmd.Flags().Changed("metrics-namespace") {
		metricsNamespace = bundle.Metrics.Namespace
	}
	if bundle.Log != "" && !cmd.Flags().Changed("log") {
		logLevel = bundle.Log
		setupLogging()
	}
}

func printPicks(queue *corpus.Queue, counts map[int]int, order []int) {
	fmt.Printf("=== Picks (%s) ===\n", queue.Dir)
	fmt.Printf("Total: %d\n", len(order))
	for _, tc := range queue.Entries {
		fmt.Printf("  %4d  %-40s %d\n", tc.ID, queue.RelPath(tc), counts[tc.ID])
	}
	if len(order) > 0 {
		seq := make([]string, len(order))
		for i, id := range order {
			seq[i] = fmt.Sprint(id)
		}
		fmt.Printf("Order: %s\n", strings.Join(seq, " "))
	}
}

func printNovelty(queue *corpus.Queue) {
	scores := make([]float64, 0, queue.Len())
	for _, tc := range queue.Entries {
		scores = append(scores, tc.NoveltyScore)
	}
	d := sched.NewDistribution(scores)
	fmt.Printf("\n=== Novelty (last scored) ===\n")
	fmt.Printf("Mean: %.4f  P50: %.4f  P95: %.4f  P99: %.4f  Min: %.4f  Max: %.4f  Count: %d\n",
		d.Mean, d.P50, d.P95, d.P99, d.Min, d.Max, d.Count)
}

func printMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logrus.Warnf("Failed to gather metrics: %v", err)
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	fmt.Printf("\n=== Metrics ===\n")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.4f", h.GetSampleCount(), h.GetSampleSum())
			}
			fmt.Printf("%s{%s} %s\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "Path to the corpus manifest (JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&policyConfigPath, "policy-config", "", "Path to YAML policy configuration file")
	runCmd.Flags().IntVar(&windowCapacity, "window", sched.WindowCapacity, "Lookahead window capacity")
	runCmd.Flags().IntVar(&picks, "picks", 64, "Number of scheduling iterations")
	runCmd.Flags().BoolVar(&refuzz, "refuzz", false, "Invalidate cached features of each picked entry")
	runCmd.Flags().BoolVar(&metricsEnabled, "metrics", false, "Collect and print scheduler metrics")
	runCmd.Flags().StringVar(&metricsNamespace, "metrics-namespace", "overlay_sched", "Prometheus metrics namespace")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scoreCmd)
}
