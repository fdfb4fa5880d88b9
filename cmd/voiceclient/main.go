// Command voiceclient runs a terminal voice conversation against a
// remote agent service. Restaurant markers and order confirmations are
// printed instead of rendered.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	voiceclient "github.com/creastat/voiceclient"
	"github.com/creastat/voiceclient/audio"
)

const dialTimeout = 10 * time.Second

// fileConfig is the YAML configuration surface of the demo binary
type fileConfig struct {
	ServerURL  string `yaml:"server_url"`
	SampleRate int    `yaml:"sample_rate"`
	LLMModel   string `yaml:"llm_model"`
	TTSModel   string `yaml:"tts_model"`
	VoiceID    string `yaml:"voice_id"`
	Microphone string `yaml:"microphone"`
	LogLevel   string `yaml:"log_level"`
}

func loadConfig(path string) (fileConfig, error) {
	cfg := fileConfig{
		ServerURL: "ws://localhost:8000/ws/voice",
		LogLevel:  "info",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if url := os.Getenv("VOICE_AGENT_URL"); url != "" {
		cfg.ServerURL = url
	}
	return cfg, nil
}

// consoleMap prints marker upserts instead of drawing them
type consoleMap struct{}

func (consoleMap) PlaceOrUpdateMarker(id string, pos voiceclient.LatLng, opts voiceclient.MarkerOptions) {
	fmt.Printf("[map] %s: %s (%.4f, %.4f)", id, opts.Title, pos.Lat, pos.Lng)
	if opts.PriceLevel != "" {
		fmt.Printf(" %s", opts.PriceLevel)
	}
	if len(opts.DeliveryPlatforms) > 0 {
		fmt.Printf(" via %s", strings.Join(opts.DeliveryPlatforms, ", "))
	}
	fmt.Println()
}

// consoleOrders prints confirmation prompts
type consoleOrders struct{}

func (consoleOrders) OnOrderConfirmable(summary string) {
	fmt.Printf("[order] ready to confirm: %s (type 'confirm')\n", summary)
}

func (consoleOrders) OnApprovalRequested(request string) {
	fmt.Printf("[order] approval requested: %s\n", request)
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		devices, err := audio.CaptureDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "enumerate devices: %v\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\n", marker, d.ID, d.Name)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := telemetry.New(telemetry.Config{Level: cfg.LogLevel})

	client, err := voiceclient.NewClient(voiceclient.ClientConfig{
		Config: voiceclient.Config{
			SampleRate:   cfg.SampleRate,
			LLMModel:     cfg.LLMModel,
			TTSModel:     cfg.TTSModel,
			VoiceID:      cfg.VoiceID,
			MicrophoneID: cfg.Microphone,
		},
		Map:    consoleMap{},
		Orders: consoleOrders{},
		Logger: logger,
		OnStateChange: func(_, new voiceclient.State) {
			fmt.Printf("[state] %s\n", new)
		},
		OnUserTranscript: func(t string) {
			fmt.Printf("[you] %s\n", t)
		},
		OnInterimTranscript: func(t string) {
			if t != "" {
				fmt.Printf("[you…] %s\r", t)
			}
		},
		OnAgentResponse: func(t string) {
			fmt.Printf("[agent] %s\n", t)
		},
		OnPreferencesStored: func(p string) {
			fmt.Printf("[profile] preferences: %s\n", p)
		},
		OnBudgetStored: func(b string) {
			fmt.Printf("[profile] budget: %s\n", b)
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	err = client.Connect(ctx, cfg.ServerURL)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("connected to %s\n", cfg.ServerURL)
	fmt.Println("commands: start, stop, confirm, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			if err := client.StartConversation(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "stop":
			if err := client.StopConversation(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "confirm":
			if err := client.ConfirmOrder(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("commands: start, stop, confirm, quit")
		}
	}
}
