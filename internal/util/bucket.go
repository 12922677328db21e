package util

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"gifforge/internal/storage"
)

func Download(bucket storage.Bucket, key string, path string) error {
	log.Debugf("download '%s' to '%s'", key, path)

	var data []byte

	err := retry.Do(func() (err error) {
		data, err = bucket.Get(key)
		return err
	}, retry.Attempts(3), retry.Delay(time.Second))

	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, data, os.ModePerm)
}

func Upload(bucket storage.Bucket, key string, path string) error {
	log.Debugf("upload '%s' to '%s'", path, key)

	data, err := ioutil.ReadFile(path)

	if err != nil {
		return err
	}

	return retry.Do(func() error {
		return bucket.Store(key, data)
	}, retry.Attempts(3), retry.Delay(time.Second))
}

func UploadBytes(bucket storage.Bucket, key string, data []byte) error {
	log.Debugf("upload %d bytes to '%s'", len(data), key)

	return retry.Do(func() error {
		return bucket.Store(key, data)
	}, retry.Attempts(3), retry.Delay(time.Second))
}
