package season_test

import (
	"errors"
	"testing"

	"github.com/okian/elorank/internal/domain/season"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPrevious(t *testing.T) {
	Convey("Given season labels", t, func() {
		Convey("When the label is YYYY/YYYY", func() {
			prev, err := season.Previous("2023/2024")

			Convey("Then both years are decremented", func() {
				So(err, ShouldBeNil)
				So(prev, ShouldEqual, "2022/2023")
			})
		})

		Convey("When the label is a single year or free text", func() {
			for _, label := range []string{"2024", "Apertura 2024", "2023-2024", "a/b"} {
				_, err := season.Previous(label)
				So(errors.Is(err, season.ErrUnparsedLabel), ShouldBeTrue)
			}
		})
	})
}

func TestSort(t *testing.T) {
	Convey("Given unordered labels with one unparsable", t, func() {
		got := season.Sort([]string{"2023/2024", "spring", "2021/2022", "2022/2023"})

		Convey("Then parsed labels come first in chronological order", func() {
			So(got, ShouldResemble, []string{"2021/2022", "2022/2023", "2023/2024", "spring"})
		})
	})
}
