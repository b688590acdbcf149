package train

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/FlavioCFOliveira/neurocore/internal/net"
)

// CSVLogger logs training progress to a CSV file with the columns
// epoch, train_loss, val_loss, time_seconds. val_loss is empty for epochs
// without validation.
type CSVLogger struct {
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
	err    error
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(n *net.Network) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0o644)
	if err != nil {
		c.err = fmt.Errorf("csv logger: %w", err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Header only for a fresh file.
	info, err := file.Stat()
	if err == nil && info.Size() == 0 {
		c.write([]string{"epoch", "train_loss", "val_loss", "time_seconds"})
	}
}

func (c *CSVLogger) OnEpochEnd(r *EpochResult) {
	if c.writer == nil {
		return
	}
	val := ""
	if r.HasValLoss {
		val = strconv.FormatFloat(r.ValLoss, 'f', 6, 64)
	}
	c.write([]string{
		strconv.Itoa(r.Epoch),
		strconv.FormatFloat(r.TrainLoss, 'f', 6, 64),
		val,
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	})
}

func (c *CSVLogger) write(record []string) {
	if err := c.writer.Write(record); err != nil {
		c.err = fmt.Errorf("csv logger: %w", err)
		return
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
}

func (c *CSVLogger) OnTrainEnd(n *net.Network) {
	if c.file != nil {
		c.writer.Flush()
		if err := c.file.Close(); err != nil && c.err == nil {
			c.err = fmt.Errorf("csv logger: %w", err)
		}
		c.file = nil
		c.writer = nil
	}
}

// Err returns the most recent I/O failure.
func (c *CSVLogger) Err() error { return c.err }
