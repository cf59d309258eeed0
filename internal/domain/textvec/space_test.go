package textvec_test

import (
	"errors"
	"testing"

	"github.com/okian/eventmatch/internal/domain/textvec"
	. "github.com/smartystreets/goconvey/convey"
)

var corpus = []string{
	"Live Jazz Concert",
	"Tech Startup Meetup",
	"Jazz and Blues Night at the Harbor",
	"Charity Marathon for the City",
}

func TestBuild(t *testing.T) {
	Convey("Given an event corpus", t, func() {
		space, err := textvec.Build(corpus)
		So(err, ShouldBeNil)

		Convey("Then stop-words are not in the vocabulary", func() {
			So(space.DocumentFrequency("the"), ShouldEqual, 0)
			So(space.DocumentFrequency("and"), ShouldEqual, 0)
		})

		Convey("Then document frequency counts each document once", func() {
			So(space.DocumentFrequency("jazz"), ShouldEqual, 2)
			So(space.DocumentFrequency("tech"), ShouldEqual, 1)
			So(space.Documents(), ShouldEqual, 4)
		})

		Convey("Then rarer terms weigh more and every weight is positive", func() {
			So(space.IDF("tech"), ShouldBeGreaterThan, space.IDF("jazz"))
			for _, term := range space.Vocabulary() {
				So(space.IDF(term), ShouldBeGreaterThan, 0)
			}
		})

		Convey("Then the vocabulary is sorted and sized", func() {
			vocab := space.Vocabulary()
			So(len(vocab), ShouldEqual, space.Size())
			for i := 1; i < len(vocab); i++ {
				So(vocab[i-1] < vocab[i], ShouldBeTrue)
			}
		})
	})

	Convey("Given an empty corpus", t, func() {
		space, err := textvec.Build(nil)

		Convey("Then the build fails with a configuration error", func() {
			So(space, ShouldBeNil)
			So(errors.Is(err, textvec.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given a corpus with a document that normalizes to nothing", t, func() {
		space, err := textvec.Build([]string{"", "Jazz Night"})
		So(err, ShouldBeNil)

		Convey("Then the sentinel token stands in for it", func() {
			So(space.DocumentFrequency("unknown"), ShouldEqual, 1)
		})
	})

	Convey("Given a custom sentinel and stop-word list", t, func() {
		space, err := textvec.Build([]string{"!!!", "the jazz"},
			textvec.WithSentinel("Untitled"),
			textvec.WithStopwords([]string{"jazz"}),
		)
		So(err, ShouldBeNil)

		Convey("Then both are applied", func() {
			So(space.DocumentFrequency("untitled"), ShouldEqual, 1)
			So(space.DocumentFrequency("the"), ShouldEqual, 1)
			So(space.DocumentFrequency("jazz"), ShouldEqual, 0)
		})
	})
}

func TestVectorize(t *testing.T) {
	Convey("Given a built space", t, func() {
		space, err := textvec.Build(corpus)
		So(err, ShouldBeNil)

		Convey("When vectorizing text with no tokens", func() {
			empty := space.Vectorize("")
			punct := space.Vectorize("... !!! the and")

			Convey("Then the vector is zero and similar to nothing", func() {
				So(empty.IsZero(), ShouldBeTrue)
				So(punct.IsZero(), ShouldBeTrue)
				So(textvec.Similarity(empty, space.Vectorize("jazz")), ShouldEqual, 0)
				So(textvec.Similarity(empty, empty), ShouldEqual, 0)
			})
		})

		Convey("When vectorizing text with unknown terms", func() {
			vec := space.Vectorize("jazz music festival")

			Convey("Then only vocabulary terms remain", func() {
				So(len(vec), ShouldEqual, 1)
				So(vec["jazz"], ShouldAlmostEqual, 1.0)
			})
		})

		Convey("When vectorizing with mixed case and punctuation", func() {
			a := space.Vectorize("LIVE, jazz!")
			b := space.Vectorize("live jazz")

			Convey("Then normalization makes them identical", func() {
				So(a, ShouldResemble, b)
			})
		})

		Convey("Then vectors are L2-normalized", func() {
			So(space.Vectorize("tech startup jazz").Norm(), ShouldAlmostEqual, 1.0, 1e-12)
		})
	})

	Convey("Given two spaces built from the same corpus", t, func() {
		first, err := textvec.Build(corpus)
		So(err, ShouldBeNil)
		second, err := textvec.Build(corpus)
		So(err, ShouldBeNil)

		Convey("Then vectorizations are bit-for-bit equal", func() {
			for _, q := range []string{"jazz music festival", "tech meetup city marathon", "harbor blues"} {
				a, b := first.Vectorize(q), second.Vectorize(q)
				So(len(a), ShouldEqual, len(b))
				for term, w := range a {
					So(b[term] == w, ShouldBeTrue)
				}
			}
		})
	})
}

func TestSimilarity(t *testing.T) {
	Convey("Given vectors from a built space", t, func() {
		space, err := textvec.Build(corpus)
		So(err, ShouldBeNil)
		texts := []string{"Live Jazz Concert", "jazz blues", "tech startup", "city marathon charity", "concert"}
		vecs := make([]textvec.Vector, len(texts))
		for i, text := range texts {
			vecs[i] = space.Vectorize(text)
		}

		Convey("Then similarity is symmetric and bounded", func() {
			for i := range vecs {
				for j := range vecs {
					ab := textvec.Similarity(vecs[i], vecs[j])
					So(ab, ShouldEqual, textvec.Similarity(vecs[j], vecs[i]))
					So(ab, ShouldBeBetweenOrEqual, 0, 1)
				}
			}
		})

		Convey("Then a non-zero vector is fully similar to itself", func() {
			for _, v := range vecs {
				So(textvec.Similarity(v, v), ShouldAlmostEqual, 1.0, 1e-12)
			}
		})

		Convey("Then disjoint vectors score zero", func() {
			So(textvec.Similarity(vecs[1], vecs[2]), ShouldEqual, 0)
		})

		Convey("Then hand-built vectors follow the cosine definition", func() {
			a := textvec.Vector{"x": 1, "y": 1}
			b := textvec.Vector{"x": 1}
			So(textvec.Similarity(a, b), ShouldAlmostEqual, 0.7071067811865475, 1e-12)
			So(textvec.Similarity(a, textvec.Vector{}), ShouldEqual, 0)
		})
	})
}
