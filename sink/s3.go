package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/visit"
)

// S3 archives location updates and visits as JSON objects.
// Location updates are keyed by day and timestamp, visits by ID,
// so pushing the same visit twice overwrites one object.
type S3 struct {
	config *params.S3Config
	svc    s3iface.S3API
	logger *slog.Logger
}

// NewS3 uses the AWS SDK's environment and shared config for region and credentials.
func NewS3(config *params.S3Config) (*S3, error) {
	if !config.Enabled() {
		return nil, errors.New("s3: no bucket configured")
	}
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return newS3WithClient(config, s3.New(sess)), nil
}

func newS3WithClient(config *params.S3Config, svc s3iface.S3API) *S3 {
	return &S3{
		config: config,
		svc:    svc,
		logger: slog.With("d", "s3", "bucket", config.Bucket),
	}
}

func (s *S3) PushLocationUpdate(ctx context.Context, u LocationUpdate) error {
	ts := u.Timestamp.UTC()
	key := path.Join(s.config.Prefix, "locations", ts.Format("2006/01/02"),
		fmt.Sprintf("%d.json", ts.UnixMilli()))
	return s.put(ctx, key, u)
}

func (s *S3) PushVisit(ctx context.Context, v *visit.Visit) error {
	key := path.Join(s.config.Prefix, "visits", v.ID+".json")
	return s.put(ctx, key, newVisitPayload(v, Metadata{}))
}

func (s *S3) put(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	_, err = s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == request.CanceledErrorCode {
			s.logger.Error("S3 upload canceled", "key", key, "error", err)
		} else {
			s.logger.Error("Failed to upload object", "key", key, "error", err)
		}
		return err
	}
	s.logger.Debug("Uploaded object", "key", key)
	return nil
}
