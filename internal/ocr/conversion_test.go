package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("DecodeImage", func() {
	var src *image.RGBA

	BeforeEach(func() {
		src = image.NewRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				src.Set(x, y, color.White)
			}
		}
	})

	When("decoding a PNG payload", func() {
		It("should return the decoded raster", func() {
			img, err := DecodeImage(encodePNG(src), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(8))
			Expect(img.Bounds().Dy()).To(Equal(8))
		})
	})

	When("decoding a JPEG payload", func() {
		It("should return the decoded raster", func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, src, nil)).To(Succeed())

			img, err := DecodeImage(buf.Bytes(), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(8))
		})
	})

	When("the content type lies about the format", func() {
		It("should still decode by sniffing the payload", func() {
			img, err := DecodeImage(encodePNG(src), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(img).NotTo(BeNil())
		})
	})

	When("the payload is not an image", func() {
		It("should return an error", func() {
			_, err := DecodeImage([]byte("definitely not pixels"), "image/png")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the payload is truncated", func() {
		It("should return an error instead of panicking", func() {
			data := encodePNG(src)
			_, err := DecodeImage(data[:10], "image/png")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("isHEICData", func() {
	It("should recognize the heic ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 16)...)
		Expect(isHEICData(data)).To(BeTrue())
	})

	It("should recognize the mif1 brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypmif1")...)
		data = append(data, make([]byte, 16)...)
		Expect(isHEICData(data)).To(BeTrue())
	})

	It("should reject other containers", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)
		data = append(data, make([]byte, 16)...)
		Expect(isHEICData(data)).To(BeFalse())
	})

	It("should reject short payloads", func() {
		Expect(isHEICData([]byte("tiny"))).To(BeFalse())
	})
})

var _ = Describe("isHEICMimeType", func() {
	It("should match heic and heif content types", func() {
		Expect(isHEICMimeType("image/heic")).To(BeTrue())
		Expect(isHEICMimeType("image/heif")).To(BeTrue())
	})

	It("should not match other image types", func() {
		Expect(isHEICMimeType("image/png")).To(BeFalse())
	})
})
