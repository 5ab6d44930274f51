package redis_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/redis"
	"github.com/papercomputeco/grove/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	var mr *miniredis.Miniredis

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
	})

	storagetest.DescribeDriver(func() storage.Driver {
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		return redis.NewDriverFromClient(client, "test:")
	})

	Describe("NewDriver", func() {
		It("requires an address", func() {
			_, err := redis.NewDriver(context.Background(), redis.Config{})
			Expect(err).To(MatchError(ContainSubstring("address is required")))
		})

		It("connects and applies the default prefix", func() {
			ctx := context.Background()
			d, err := redis.NewDriver(ctx, redis.Config{Addr: mr.Addr()})
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			id, err := d.Insert(ctx, "alice", storagetest.NewDocument("t", time.Now()))
			Expect(err).NotTo(HaveOccurred())
			Expect(mr.Exists(redis.DefaultPrefix + "conv:" + id)).To(BeTrue())
			Expect(mr.Exists(redis.DefaultPrefix + "owner:alice")).To(BeTrue())
		})
	})

	It("skips index entries whose document is gone", func() {
		ctx := context.Background()
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		d := redis.NewDriverFromClient(client, "test:")
		defer d.Close()

		id, err := d.Insert(ctx, "alice", storagetest.NewDocument("t", time.Now()))
		Expect(err).NotTo(HaveOccurred())
		mr.Del("test:conv:" + id)

		list, err := d.List(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())
	})
})
