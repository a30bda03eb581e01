package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const recordHeaderLen = 2

// client replays a capture of length-prefixed records to a heimdall feed
// server, optionally throttled.
func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the heimdall feed server")
	input := flag.String("input", "", "Capture file of 2-byte length prefixed records (compulsory)")
	rate := flag.Int("rate", 0, "Records per second, 0 sends as fast as possible")
	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("open capture")
	}
	defer f.Close()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()
	log.Info().Str("server", *serverAddr).Str("input", *input).Msg("connected")

	records, err := replay(conn, f, *rate)
	if err != nil {
		log.Fatal().Err(err).Int("records", records).Msg("replay failed")
	}
	log.Info().Int("records", records).Msg("replay finished")
}

// replay copies whole records from r to w. A zero length record ends the
// capture and is forwarded so the server sees the end of session.
func replay(w io.Writer, r io.Reader, rate int) (int, error) {
	var tick <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	header := make([]byte, recordHeaderLen)
	for records := 0; ; records++ {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("read record header: %w", err)
		}
		length := int(binary.BigEndian.Uint16(header))
		record := make([]byte, recordHeaderLen+length)
		copy(record, header)
		if _, err := io.ReadFull(br, record[recordHeaderLen:]); err != nil {
			return records, fmt.Errorf("read record of %d bytes: %w", length, err)
		}

		if tick != nil {
			<-tick
		}
		if _, err := bw.Write(record); err != nil {
			return records, fmt.Errorf("send record: %w", err)
		}
		if tick != nil {
			if err := bw.Flush(); err != nil {
				return records, err
			}
		}
		if length == 0 {
			return records + 1, nil
		}
	}
}
