// Package retrieval submits asynchronous archive-retrieval jobs to Glacier.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	glaciertypes "github.com/aws/aws-sdk-go-v2/service/glacier/types"

	"github.com/eunmann/glacier-restager/pkg/config"
)

// ErrEmptyArchiveID is returned when Submit is called without an archive ID.
var ErrEmptyArchiveID = errors.New("empty archive id")

// JobAPI is the subset of the Glacier client used by the Submitter.
type JobAPI interface {
	InitiateJob(ctx context.Context, params *glacier.InitiateJobInput, optFns ...func(*glacier.Options)) (*glacier.InitiateJobOutput, error)
}

// Submitter issues archive-retrieval jobs against one vault with a fixed
// tier and notification topic. Every successful Submit starts billable work
// on the backend, so callers must not submit an archive that already has a
// status record.
type Submitter struct {
	glacier  JobAPI
	vault    string
	tier     string
	topicARN string
}

// NewSubmitter creates a Submitter from a pre-built Glacier client.
func NewSubmitter(api JobAPI, cfg config.Config) *Submitter {
	return &Submitter{
		glacier:  api,
		vault:    cfg.VaultName,
		tier:     cfg.RetrievalTier,
		topicARN: cfg.SNSTopicARN,
	}
}

// NewSubmitterFromAWSConfig creates a Submitter with a Glacier client built
// from the given AWS config.
func NewSubmitterFromAWSConfig(awsCfg aws.Config, cfg config.Config) *Submitter {
	return NewSubmitter(glacier.NewFromConfig(awsCfg), cfg)
}

// Submit starts one retrieval job for the archive and returns the job
// handle. Completion arrives later on the notification topic; this call only
// enqueues the work.
func (s *Submitter) Submit(ctx context.Context, archiveID string) (string, error) {
	if archiveID == "" {
		return "", ErrEmptyArchiveID
	}

	out, err := s.glacier.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		JobParameters: &glaciertypes.JobParameters{
			Type:      aws.String("archive-retrieval"),
			ArchiveId: aws.String(archiveID),
			Tier:      aws.String(s.tier),
			SNSTopic:  aws.String(s.topicARN),
		},
	})
	if err != nil {
		return "", fmt.Errorf("initiate retrieval for archive %s: %w", archiveID, err)
	}

	return aws.ToString(out.JobId), nil
}
