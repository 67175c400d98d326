package storage

import (
	"encoding/json"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/openrtb_ext"
)

func marshalImpExt(winner *openrtb2.Bid) (json.RawMessage, error) {
	return json.Marshal(openrtb_ext.ExtImp{Winner: winner})
}
