package nutrition_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/nutrition-proxy/internal/nutrition"
)

var _ = Describe("Queries", func() {
	Describe("TextQuery.Validate", func() {
		It("accepts a food description", func() {
			Expect(nutrition.TextQuery{Text: "2 large eggs and 100g rice"}.Validate()).To(Succeed())
		})

		It("rejects empty text", func() {
			err := nutrition.TextQuery{}.Validate()
			Expect(err).To(MatchError("Query is required"))
		})

		It("rejects whitespace-only text", func() {
			err := nutrition.TextQuery{Text: "  \n\t"}.Validate()
			Expect(err).To(MatchError("Query is required"))
		})
	})

	Describe("ImageQuery.Validate", func() {
		It("accepts base64 data", func() {
			Expect(nutrition.NewImageQuery("aGVsbG8=").Validate()).To(Succeed())
		})

		It("rejects empty data", func() {
			Expect(nutrition.ImageQuery{}.Validate()).To(MatchError("Image data is required"))
		})

		It("rejects a data URL with no payload", func() {
			Expect(nutrition.NewImageQuery("data:image/png;base64,").Validate()).To(MatchError("Image data is required"))
		})
	})

	Describe("NewImageQuery", func() {
		It("defaults to JPEG for raw base64", func() {
			q := nutrition.NewImageQuery("aGVsbG8=")
			Expect(q.ImageData).To(Equal("aGVsbG8="))
			Expect(q.MIMEType).To(Equal(nutrition.DefaultImageMIMEType))
		})

		It("strips a data URL prefix and keeps its MIME type", func() {
			q := nutrition.NewImageQuery("data:image/png;base64,aGVsbG8=")
			Expect(q.ImageData).To(Equal("aGVsbG8="))
			Expect(q.MIMEType).To(Equal("image/png"))
		})

		It("keeps the default MIME type when the data URL omits one", func() {
			q := nutrition.NewImageQuery("data:;base64,aGVsbG8=")
			Expect(q.ImageData).To(Equal("aGVsbG8="))
			Expect(q.MIMEType).To(Equal(nutrition.DefaultImageMIMEType))
		})

		It("leaves a malformed data URL untouched", func() {
			q := nutrition.NewImageQuery("data:image/png;base64")
			Expect(q.ImageData).To(Equal("data:image/png;base64"))
		})
	})
})
