package resolver

import "net/url"

// Application route prefixes consumed by the SPA router.
const (
	pmWorkOrderPrefix = "/pm/wo/"
	equipmentPrefix   = "/equipment/"
	inventoryBase     = "/engineering/inventory-spare-parts-management"
)

// pmWorkOrderPath routes to a PM work order by UUID or raw HR code.
func pmWorkOrderPath(ref string) string {
	return pmWorkOrderPrefix + url.PathEscape(ref)
}

// equipmentPath routes to an asset detail view.
func equipmentPath(id string) string {
	return equipmentPrefix + url.PathEscape(id)
}

// inventoryPath routes to the spare-parts inventory screen with the given
// query parameters (part_uid/part_code/plant_id/bin_code).
func inventoryPath(params url.Values) string {
	return inventoryBase + "?" + params.Encode()
}
