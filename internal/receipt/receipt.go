// Package receipt renders payment receipts as PDF files on local disk.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
)

const (
	filePrefix   = "receipt-"
	fileExt      = ".pdf"
	nameAttempts = 5
)

// Receipt is immutable once written; a new approval produces a new file.
type Receipt struct {
	MemberID  string
	CreatedAt time.Time
	FilePath  string
	URL       string
}

type GenerationError struct {
	MemberID string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate receipt for member %s: %v", e.MemberID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Generator struct {
	dir       string
	urlPrefix string
	clock     clockwork.Clock
	log       logger.Logger
}

// NewGenerator creates dir if needed. urlPrefix is the public path files are
// served under, e.g. "/receipts" or "https://gym.example.com/receipts".
func NewGenerator(dir, urlPrefix string, clk clockwork.Clock, log logger.Logger) (*Generator, error) {
	if dir == "" {
		return nil, errors.New("receipt dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("receipt dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Generator{
		dir:       abs,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		clock:     clk,
		log:       log,
	}, nil
}

func (g *Generator) Dir() string {
	return g.dir
}

// Generate writes receipt-<memberID>-<epochMillis>.pdf. Existing files are never overwritten.
func (g *Generator) Generate(ctx context.Context, member membershipdomain.Member) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{MemberID: member.ID, Err: err}
	}

	createdAt := g.clock.Now().Truncate(time.Millisecond)
	doc, err := render(member, createdAt)
	if err != nil {
		return nil, &GenerationError{MemberID: member.ID, Err: err}
	}

	var (
		file *os.File
		name string
	)
	stamp := createdAt.UnixMilli()
	for i := 0; i < nameAttempts; i++ {
		name = fmt.Sprintf("%s%s-%d%s", filePrefix, member.ID, stamp+int64(i), fileExt)
		file, err = os.OpenFile(filepath.Join(g.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, &GenerationError{MemberID: member.ID, Err: err}
	}

	path := file.Name()
	if err := doc.Output(file); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, &GenerationError{MemberID: member.ID, Err: err}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, &GenerationError{MemberID: member.ID, Err: err}
	}

	g.log.Info("receipt: generated", "member_id", member.ID, "file", name)
	return &Receipt{
		MemberID:  member.ID,
		CreatedAt: createdAt,
		FilePath:  path,
		URL:       g.urlPrefix + "/" + name,
	}, nil
}

// DeleteForMember removes every receipt file of the member and reports how many were removed.
func (g *Generator) DeleteForMember(ctx context.Context, memberID string) (int, error) {
	if memberID == "" || strings.ContainsAny(memberID, `/\*?[`) {
		return 0, fmt.Errorf("invalid member id %q", memberID)
	}

	matches, err := filepath.Glob(filepath.Join(g.dir, filePrefix+memberID+"-*"+fileExt))
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
