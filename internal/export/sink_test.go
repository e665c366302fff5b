package export

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("LocalSink", func() {
	var sink *LocalSink

	ginkgo.BeforeEach(func() {
		var err error
		sink, err = NewLocalSink(filepath.Join(ginkgo.GinkgoT().TempDir(), "exports"))
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.It("should round-trip a text export", func() {
		Expect(sink.WriteText("invoice-items-2024-03-09.csv", ContentTypeCSV, "Date,Description,Amount")).To(Succeed())
		data, err := sink.Get("invoice-items-2024-03-09.csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("Date,Description,Amount"))
	})

	ginkgo.It("should keep writes inside its directory", func() {
		Expect(sink.WriteBinary("../escape.pdf", ContentTypePDF, []byte("%PDF"))).To(Succeed())
		_, err := sink.Get("escape.pdf")
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.It("should report missing exports", func() {
		_, err := sink.Get("missing.csv")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})
})

var _ = ginkgo.Describe("BoltSink", func() {
	var (
		sink *BoltSink
		tick time.Time
	)

	ginkgo.BeforeEach(func() {
		var err error
		sink, err = NewBoltSink(filepath.Join(ginkgo.GinkgoT().TempDir(), "exports.db"))
		Expect(err).NotTo(HaveOccurred())
		tick = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
		sink.now = func() time.Time {
			tick = tick.Add(time.Minute)
			return tick
		}
	})

	ginkgo.AfterEach(func() {
		if sink != nil {
			sink.Close()
		}
	})

	ginkgo.It("should archive and return exports", func() {
		Expect(sink.WriteBinary("invoice-42.pdf", ContentTypePDF, []byte("%PDF-1.3"))).To(Succeed())
		entry, data, err := sink.Get("invoice-42.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.ContentType).To(Equal(ContentTypePDF))
		Expect(entry.Size).To(Equal(8))
		Expect(string(data)).To(Equal("%PDF-1.3"))
	})

	ginkgo.It("should list newest first", func() {
		Expect(sink.WriteText("a.csv", ContentTypeCSV, "a")).To(Succeed())
		Expect(sink.WriteText("b.csv", ContentTypeCSV, "b")).To(Succeed())
		entries, err := sink.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Name).To(Equal("b.csv"))
	})

	ginkgo.It("should replace an export written twice", func() {
		Expect(sink.WriteText("a.csv", ContentTypeCSV, "old")).To(Succeed())
		Expect(sink.WriteText("a.csv", ContentTypeCSV, "new")).To(Succeed())
		_, data, err := sink.Get("a.csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("new"))
	})

	ginkgo.It("should report missing exports", func() {
		_, _, err := sink.Get("missing.csv")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	ginkgo.It("should delete exports", func() {
		Expect(sink.WriteText("a.csv", ContentTypeCSV, "a")).To(Succeed())
		Expect(sink.Delete("a.csv")).To(Succeed())
		_, _, err := sink.Get("a.csv")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})
})

var _ = ginkgo.Describe("Tee", func() {
	ginkgo.It("should write to every sink and skip nil ones", func() {
		dir := ginkgo.GinkgoT().TempDir()
		a, err := NewLocalSink(filepath.Join(dir, "a"))
		Expect(err).NotTo(HaveOccurred())
		b, err := NewLocalSink(filepath.Join(dir, "b"))
		Expect(err).NotTo(HaveOccurred())

		Expect(Tee(a, nil, b).WriteText("x.csv", ContentTypeCSV, "x")).To(Succeed())
		for _, s := range []*LocalSink{a, b} {
			data, err := s.Get("x.csv")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("x"))
		}
	})
})
