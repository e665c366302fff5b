package ingest

import (
	"encoding/base64"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfHeader = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	heicBytes = []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic")
)

var _ = Describe("Ingestor", func() {
	var (
		ingestor *Ingestor
		file     *File
		payload  *Payload
		err      error
	)

	BeforeEach(func() {
		ingestor = NewIngestor()
	})

	JustBeforeEach(func() {
		payload, err = ingestor.Ingest(file)
	})

	When("no file is given", func() {
		BeforeEach(func() {
			file = nil
		})

		It("should be a no-op", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(BeNil())
		})
	})

	When("the file is empty", func() {
		BeforeEach(func() {
			file = &File{Name: "empty.png", ContentType: "image/png"}
		})

		It("should be a no-op", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(BeNil())
		})
	})

	When("the file is a PNG", func() {
		BeforeEach(func() {
			file = &File{Name: "statement.png", ContentType: "image/png", Data: pngHeader}
		})

		It("should base64 encode the data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.MediaType).To(Equal("image/png"))
			Expect(payload.Data).To(Equal(base64.StdEncoding.EncodeToString(pngHeader)))
			Expect(payload.Size).To(Equal(len(pngHeader)))
		})
	})

	When("the declared content type has parameters", func() {
		BeforeEach(func() {
			file = &File{Name: "statement.pdf", ContentType: "Application/PDF; charset=binary", Data: pdfHeader}
		})

		It("should normalize the media type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.MediaType).To(Equal("application/pdf"))
		})
	})

	When("no content type is declared", func() {
		BeforeEach(func() {
			file = &File{Name: "scan", Data: pdfHeader}
		})

		It("should sniff the data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.MediaType).To(Equal("application/pdf"))
		})
	})

	When("the type is not allowed", func() {
		BeforeEach(func() {
			file = &File{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
		})

		It("should return an UnsupportedFileError", func() {
			var unsupported *UnsupportedFileError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.MediaType).To(Equal("text/plain"))
			Expect(payload).To(BeNil())
		})
	})

	When("the file is HEIC and conversion is disabled", func() {
		BeforeEach(func() {
			file = &File{Name: "IMG_0001.HEIC", Data: heicBytes}
		})

		It("should reject it", func() {
			var unsupported *UnsupportedFileError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.MediaType).To(Equal("image/heic"))
		})
	})

	When("a size limit is configured", func() {
		BeforeEach(func() {
			ingestor = NewIngestor(WithMaxSize(8))
			file = &File{Name: "big.png", ContentType: "image/png", Data: pngHeader}
		})

		It("should return a FileTooLargeError", func() {
			var tooLarge *FileTooLargeError
			Expect(errors.As(err, &tooLarge)).To(BeTrue())
			Expect(tooLarge.Limit).To(Equal(8))
		})
	})
})

var _ = Describe("ResolveMediaType", func() {
	DescribeTable("falls back to the extension",
		func(name, expected string) {
			Expect(ResolveMediaType(&File{Name: name, Data: []byte{0x00, 0x01, 0x02}})).To(Equal(expected))
		},
		Entry("jpeg", "a.JPG", "image/jpeg"),
		Entry("webp", "a.webp", "image/webp"),
		Entry("gif", "a.gif", "image/gif"),
		Entry("heif", "a.heif", "image/heif"),
		Entry("unknown", "a.bin", "application/octet-stream"),
	)
})
