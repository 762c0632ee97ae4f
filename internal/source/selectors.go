package source

// Marketplace DOM selectors.
// These are isolated here because the marketplace changes its generated
// class names frequently. Update these when scraping breaks.
const (
	// Search result tiles.
	listingTile  = `div.xjp7ctv`
	listingLink  = `a.x1i10hfl`
	listingPrice = `div.x1gslohp`
	listingTitle = `span.x1lliihq.x6ikm8r.x10wlt62.x1n2onr6`

	// Detail page map widget. The static map image carries the listing
	// coordinates in its URL.
	mapImageDiv    = `div[style*="background-image"]`
	mapImageAltDiv = `div.x13vifvy`
)

// extractListingsJS pulls the visible search tiles into a JSON array.
const extractListingsJS = `
	(function() {
		const tiles = document.querySelectorAll('` + listingTile + `');
		const results = [];

		tiles.forEach(el => {
			const linkEl = el.querySelector('` + listingLink + `');
			const priceEl = el.querySelector('` + listingPrice + `');
			const titleEl = el.querySelector('` + listingTitle + `');

			results.push({
				link: linkEl ? (linkEl.getAttribute('href') || '') : '',
				price: priceEl ? priceEl.textContent.trim() : '',
				title: titleEl ? titleEl.textContent.trim() : '',
			});
		});

		return results;
	})()
`
