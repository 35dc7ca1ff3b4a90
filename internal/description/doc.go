// Package description fetches and memoizes UPnP device description
// documents.
//
// A description is the XML document served at the LOCATION advertised in an
// SSDP response. It is converted into a nested map (see Description) and
// remembered per location for the life of the Cache, including failures,
// which are remembered as empty descriptions so a broken device is not
// fetched again on every query.
//
//	cache := description.NewCache(description.WithTimeout(5 * time.Second))
//	d := cache.Describe(ctx, entry.Location())
//	fmt.Println(d.DeviceField("friendlyName"))
package description
