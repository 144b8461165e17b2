package sink

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/visit"
	"github.com/tidwall/gjson"
)

type fakeS3 struct {
	s3iface.S3API
	fail    bool
	objects map[string][]byte
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newS3WithClient(&params.S3Config{Bucket: "cats", Prefix: "rye", Timeout: time.Second}, fake)

	ts := time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)
	if err := s.PushLocationUpdate(context.Background(), LocationUpdate{
		Latitude: 45, Longitude: -93, Timestamp: ts, MovementState: movement.Stationary,
	}); err != nil {
		t.Fatal(err)
	}
	b, ok := fake.objects["cats/rye/locations/2024/12/20/1734696000000.json"]
	if !ok {
		t.Fatalf("location object missing: %v", fake.objects)
	}
	if have := gjson.GetBytes(b, "movementState").String(); have != "STATIONARY" {
		t.Errorf("movementState: have %s", have)
	}

	dep := ts.Add(time.Hour).UnixMilli()
	dur := int64(time.Hour / time.Millisecond)
	v := &visit.Visit{ID: "v1", Place: "Home", ArrivalTime: ts.UnixMilli(), DepartureTime: &dep, Duration: &dur}
	if err := s.PushVisit(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	b, ok = fake.objects["cats/rye/visits/v1.json"]
	if !ok {
		t.Fatalf("visit object missing: %v", fake.objects)
	}
	if have := gjson.GetBytes(b, "placeName").String(); have != "Home" {
		t.Errorf("placeName: have %s", have)
	}

	fake.fail = true
	if err := s.PushVisit(context.Background(), v); err == nil {
		t.Error("expected error")
	}
}
