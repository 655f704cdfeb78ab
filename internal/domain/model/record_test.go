package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/debtlens/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestOptional(t *testing.T) {
	convey.Convey("Given optional values", t, func() {
		convey.Convey("When a value is absent", func() {
			o := model.None[float64]()

			convey.Convey("Then it is distinct from zero", func() {
				v, ok := o.Get()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(v, convey.ShouldEqual, 0)
				convey.So(o.Present(), convey.ShouldBeFalse)
				convey.So(model.Some(0.0).Present(), convey.ShouldBeTrue)
				convey.So(o.OrElse(-1), convey.ShouldEqual, -1)
			})

			convey.Convey("And it encodes as null", func() {
				b, err := json.Marshal(o)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldEqual, "null")
			})
		})

		convey.Convey("When decoding JSON", func() {
			var vals []model.Optional[float64]
			err := json.Unmarshal([]byte(`[1.5, null, 0]`), &vals)

			convey.Convey("Then null stays absent and zero stays present", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(vals, convey.ShouldHaveLength, 3)
				convey.So(vals[0].OrElse(0), convey.ShouldEqual, 1.5)
				convey.So(vals[1].Present(), convey.ShouldBeFalse)
				convey.So(vals[2].Present(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRecordSet(t *testing.T) {
	convey.Convey("Given a record set built from a slice", t, func() {
		src := []model.Record{{Continent: "Africa", Subregion: "Eastern Africa", Country: "Kenya", Year: 2022}}
		set := model.NewRecordSet(src)
		src[0].Country = "changed"

		convey.Convey("Then later changes to the slice are not visible", func() {
			convey.So(set.Len(), convey.ShouldEqual, 1)
			convey.So(set.At(0).Country, convey.ShouldEqual, "Kenya")
		})

		convey.Convey("And copies handed out do not alias the set", func() {
			cp := set.Records()
			cp[0].Country = "other"
			convey.So(set.At(0).Country, convey.ShouldEqual, "Kenya")
		})

		convey.Convey("And the group label follows the field", func() {
			convey.So(set.At(0).Group(model.FieldContinent), convey.ShouldEqual, "Africa")
			convey.So(set.At(0).Group(model.FieldSubregion), convey.ShouldEqual, "Eastern Africa")
		})
	})
}

func TestParseGroupField(t *testing.T) {
	convey.Convey("Given configured field names", t, func() {
		f, err := model.ParseGroupField(" Subregion ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(f, convey.ShouldEqual, model.FieldSubregion)

		f, err = model.ParseGroupField("")
		convey.So(err, convey.ShouldBeNil)
		convey.So(f, convey.ShouldEqual, model.FieldContinent)

		_, err = model.ParseGroupField("planet")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
