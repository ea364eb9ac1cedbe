// Package coco converts COCO-style keypoint documents into person tracking
// annotations. Both the {images, annotations, categories} layout and the
// simpler {people: [...]} layout are accepted.
package coco
