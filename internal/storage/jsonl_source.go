package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"approvalScope/internal/model"
)

// JsonlSource answers log queries from a JSONL file written by JsonlStorage.
// The file is scanned on every query.
type JsonlSource struct {
	path   string
	logger *zap.Logger
}

func NewJsonlSource(path string, logger *zap.Logger) *JsonlSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JsonlSource{path: path, logger: logger}
}

// QueryLogs returns the logs in the file matching q, sorted in chain order.
// Unparseable lines are skipped.
func (s *JsonlSource) QueryLogs(ctx context.Context, q model.LogQuery) ([]model.RawApprovalEvent, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open input: %v", model.ErrTransport, err)
	}
	defer file.Close()

	contracts := make(map[common.Address]struct{}, len(q.Contracts))
	for _, contract := range q.Contracts {
		contracts[contract] = struct{}{}
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	events := make([]model.RawApprovalEvent, 0)
	var lineNo, skipped int
	for scanner.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var event model.RawApprovalEvent
		if err := json.Unmarshal(line, &event); err != nil {
			skipped++
			s.logger.Warn("skip malformed log line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if matches(event, q, contracts) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan input: %v", model.ErrTransport, err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})

	s.logger.Debug("approval logs loaded",
		zap.String("in", s.path),
		zap.String("owner", q.Owner.Hex()),
		zap.Int("logs", len(events)),
		zap.Int("skipped", skipped),
	)
	return events, nil
}

func matches(event model.RawApprovalEvent, q model.LogQuery, contracts map[common.Address]struct{}) bool {
	if sig, ok := event.Topic(model.TopicSignature); !ok || sig != q.Topic0 {
		return false
	}
	if owner, ok := event.Topic(model.TopicOwner); !ok || owner != q.Owner {
		return false
	}
	if event.BlockNumber < q.FromBlock {
		return false
	}
	if q.ToBlock != 0 && event.BlockNumber > q.ToBlock {
		return false
	}
	if len(contracts) > 0 {
		if _, ok := contracts[event.Address]; !ok {
			return false
		}
	}
	return true
}
