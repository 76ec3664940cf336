package node

import (
	"bufio"
	"io"
)

// ReadLines feeds newline-terminated lines from r into the returned channel.
// The channel closes on EOF or read error; the node loop keeps running on
// network events alone after that.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Warnf("Input reader stopped: %v", err)
		}
	}()
	return lines
}
