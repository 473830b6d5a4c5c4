// Command sndchk is thin CLI glue over pkg/sndchk (spec §1: the
// command-line front-end is an external collaborator, not part of the
// core). It decodes each argument as a 16-bit PCM WAV file, runs the
// pipeline, and prints the diagnostic report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"golang.org/x/sys/unix"

	"github.com/accurasound/sndchk/pkg/sndchk"
	"github.com/accurasound/sndchk/pkg/sndchk/fingersum"
	"github.com/accurasound/sndchk/pkg/sndchk/logx"
	"github.com/accurasound/sndchk/pkg/sndchk/output"
)

var (
	userAgent      string
	fingerprintKey string
	workers        int
	arLocalHost    string
	eacLocalHost   string
)

func init() {
	flag.StringVar(&userAgent, "user-agent", getEnvOrDefault("SNDCHK_USER_AGENT", "sndchk/1.0 (+https://github.com/accurasound/sndchk)"), "User-Agent sent to every service")
	flag.StringVar(&fingerprintKey, "fingerprint-key", getEnvOrDefault("SNDCHK_FINGERPRINT_API_KEY", ""), "Fingerprint service API key")
	flag.IntVar(&workers, "workers", 4, "CPU worker pool size")
	flag.StringVar(&arLocalHost, "ar-local-host", "", "AccurateRip localhost-helper base URL (optional)")
	flag.StringVar(&eacLocalHost, "eac-local-host", "", "EAC localhost-helper base URL (optional)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logx.Get().With(logx.Fields{"component": "cli"})

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Println("Usage: sndchk [flags] <file.wav> [file.wav ...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-sigCh
		log.Warnf("received shutdown signal, cancelling run")
		cancel()
	}()
	defer cancel()

	inputs := make([]sndchk.Input, 0, len(paths))
	for _, p := range paths {
		src, err := loadWAV(p)
		if err != nil {
			log.Fatalf("failed to load %s: %v", p, err)
			os.Exit(1)
		}
		inputs = append(inputs, sndchk.Input{Source: src})
	}

	result, reduceCtx, err := sndchk.Run(ctx, inputs,
		sndchk.WithUserAgent(userAgent),
		sndchk.WithFingerprintAPIKey(fingerprintKey),
		sndchk.WithWorkers(workers),
		sndchk.WithAccurateRipLocalHost(arLocalHost),
		sndchk.WithEACLocalHost(eacLocalHost),
	)
	if err != nil {
		log.Fatalf("run failed: %v", err)
		os.Exit(1)
	}

	output.Report(os.Stdout, result, reduceCtx)
}

// wavSource adapts a decoded WAV buffer to fingersum.StreamSource.
type wavSource struct {
	frames []fingersum.Frame
}

func (s wavSource) Frames() []fingersum.Frame { return s.frames }

// loadWAV decodes a 16-bit PCM WAV file into a StreamSource. Embedded tag
// extraction (title/artist/album, used by the metadata-distance pass) is
// a separate external collaborator and out of scope here; tags are left
// zero-valued.
func loadWAV(path string) (sndchk.StreamSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("reading duration of %s: %w", path, err)
	}

	totalSamples := int(duration.Seconds()*float64(decoder.SampleRate)) * int(decoder.NumChans)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(decoder.NumChans),
			SampleRate:  int(decoder.SampleRate),
		},
		Data:           make([]int, totalSamples),
		SourceBitDepth: int(decoder.BitDepth),
	}
	if _, err := decoder.PCMBuffer(buf); err != nil {
		return nil, fmt.Errorf("reading PCM from %s: %w", path, err)
	}
	if decoder.BitDepth != 16 {
		return nil, fmt.Errorf("%s is %d-bit, only 16-bit PCM is supported", path, decoder.BitDepth)
	}

	switch decoder.NumChans {
	case 1:
		frames := make([]fingersum.Frame, len(buf.Data))
		for i, s := range buf.Data {
			v := int16(s)
			frames[i] = fingersum.Frame{Left: v, Right: v}
		}
		return wavSource{frames: frames}, nil
	case 2:
		frames := make([]fingersum.Frame, len(buf.Data)/2)
		for i := range frames {
			frames[i] = fingersum.Frame{Left: int16(buf.Data[2*i]), Right: int16(buf.Data[2*i+1])}
		}
		return wavSource{frames: frames}, nil
	default:
		return nil, fmt.Errorf("%s has %d channels, only mono or stereo is supported", path, decoder.NumChans)
	}
}
